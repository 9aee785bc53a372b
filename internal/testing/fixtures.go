package testing

// TrackJSON returns a Spotify track object for id.
func TrackJSON(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        "Song " + id,
		"uri":         "spotify:track:" + id,
		"duration_ms": 200000,
		"artists": []map[string]any{
			{"id": "artist-" + id, "name": "Artist " + id},
			{"id": "feat-" + id, "name": "Guest " + id},
		},
		"album": map[string]any{
			"id":   "album-" + id,
			"name": "Album " + id,
			"images": []map[string]any{
				{"url": "https://i.scdn.co/image/" + id + "-640", "width": 640, "height": 640},
				{"url": "https://i.scdn.co/image/" + id + "-64", "width": 64, "height": 64},
			},
		},
	}
}

// PlayerJSON returns a GET /me/player body with an active or idle device.
func PlayerJSON(active bool) map[string]any {
	return map[string]any{
		"is_playing":  active,
		"progress_ms": 42000,
		"device": map[string]any{
			"id": "device-1", "name": "Living Room", "type": "Speaker", "is_active": active,
		},
	}
}

// CurrentlyPlayingJSON returns a GET /me/player/currently-playing body.
func CurrentlyPlayingJSON(id string) map[string]any {
	return map[string]any{"is_playing": true, "progress_ms": 42000, "item": TrackJSON(id)}
}

// QueueJSON returns a GET /me/player/queue body.
func QueueJSON(current string, ids ...string) map[string]any {
	queue := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		queue = append(queue, TrackJSON(id))
	}
	body := map[string]any{"queue": queue, "currently_playing": nil}
	if current != "" {
		body["currently_playing"] = TrackJSON(current)
	}
	return body
}

// PlaylistJSON returns a GET /playlists/{id}/tracks body. An empty id produces a null track entry.
func PlaylistJSON(ids ...string) map[string]any {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			items = append(items, map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": nil})
			continue
		}
		items = append(items, map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": TrackJSON(id)})
	}
	return map[string]any{"items": items, "total": len(items)}
}

// SearchJSON returns a GET /search body.
func SearchJSON(ids ...string) map[string]any {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, TrackJSON(id))
	}
	return map[string]any{"tracks": map[string]any{"items": items, "total": len(items)}}
}
