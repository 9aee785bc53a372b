// Spotify Web API wire types and request builders.
//
// Response types are based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
	"golang.org/x/oauth2"
)

// Scopes requested when a host or user authorizes playback access.
var Scopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"streaming",
	"user-read-email",
	"user-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

const (
	SearchLimit        = 10
	PlaylistFetchLimit = 50
)

// NewOAuthConfig builds the [oauth2.Config] shared by the login flow and the [TokenRefresher].
//
// Client credentials are sent with HTTP Basic auth, which the token endpoint requires for refresh grants.
func NewOAuthConfig(creds shared.SpotifyConfig, upstream shared.UpstreamConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   upstream.AuthURL,
			TokenURL:  upstream.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// Normalize converts the wire track into a [models.Track]. Album art is passed through unchanged.
func (t SpotifyTrack) Normalize() models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	images := make([]models.Image, 0, len(t.Album.Images))
	for _, img := range t.Album.Images {
		images = append(images, models.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}

	return models.Track{
		ID:         t.ID,
		Title:      t.Name,
		Artists:    artists,
		Images:     images,
		URI:        t.URI,
		DurationMS: t.DurationMS,
	}
}

// NormalizeTracks converts a slice of wire tracks, preserving order.
func NormalizeTracks(tracks []SpotifyTrack) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.Normalize())
	}
	return out
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyDevice is a playback device attached to the account.
type SpotifyDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// PlayerState is the response of GET /me/player.
type PlayerState struct {
	Device     *SpotifyDevice `json:"device"`
	IsPlaying  bool           `json:"is_playing"`
	ProgressMS int            `json:"progress_ms"`
	Item       *SpotifyTrack  `json:"item"`
}

// HasActiveDevice reports whether playback can be observed on some device.
func (p *PlayerState) HasActiveDevice() bool {
	return p != nil && p.Device != nil && p.Device.IsActive
}

// CurrentlyPlaying is the response of GET /me/player/currently-playing.
type CurrentlyPlaying struct {
	IsPlaying  bool          `json:"is_playing"`
	ProgressMS int           `json:"progress_ms"`
	Item       *SpotifyTrack `json:"item"`
}

// PlayerQueue is the response of GET /me/player/queue.
type PlayerQueue struct {
	CurrentlyPlaying *SpotifyTrack  `json:"currently_playing"`
	Queue            []SpotifyTrack `json:"queue"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is null for removed or local items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// PlaylistTracksPage is the response of GET /playlists/{id}/tracks.
type PlaylistTracksPage struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// Tracks returns the non-null tracks of the page in playlist order.
func (p *PlaylistTracksPage) Tracks() []SpotifyTrack {
	tracks := make([]SpotifyTrack, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Track == nil || item.Track.ID == "" {
			continue
		}
		tracks = append(tracks, *item.Track)
	}
	return tracks
}

// SearchResponse is the response of GET /search with type=track.
type SearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// SpotifyPlaylist represents a playlist as returned on creation.
type SpotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	URI         string `json:"uri"`
}

// SnapshotResponse is returned by playlist mutations.
type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// Request describes one call against the playback API, relative to the configured base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

// SearchRequest searches tracks matching query.
func SearchRequest(query string, limit int) Request {
	if limit <= 0 || limit > 50 {
		limit = SearchLimit
	}
	return Request{
		Method: http.MethodGet,
		Path:   "/search",
		Query:  url.Values{"q": {query}, "type": {"track"}, "limit": {strconv.Itoa(limit)}},
	}
}

// CurrentlyPlayingRequest fetches the track on the active device.
func CurrentlyPlayingRequest() Request {
	return Request{Method: http.MethodGet, Path: "/me/player/currently-playing"}
}

// PlayerQueueRequest fetches the player's upcoming queue.
func PlayerQueueRequest() Request {
	return Request{Method: http.MethodGet, Path: "/me/player/queue"}
}

// PlayerStateRequest fetches device and playback state.
func PlayerStateRequest() Request {
	return Request{Method: http.MethodGet, Path: "/me/player"}
}

// PlaylistTracksRequest fetches the first limit entries of a playlist.
func PlaylistTracksRequest(playlistID string, limit int) Request {
	if limit <= 0 || limit > PlaylistFetchLimit {
		limit = PlaylistFetchLimit
	}
	return Request{
		Method: http.MethodGet,
		Path:   "/playlists/" + url.PathEscape(playlistID) + "/tracks",
		Query:  url.Values{"limit": {strconv.Itoa(limit)}},
	}
}

// AddToQueueRequest appends uri to the player queue.
func AddToQueueRequest(uri string) Request {
	return Request{Method: http.MethodPost, Path: "/me/player/queue", Query: url.Values{"uri": {uri}}}
}

// AddToPlaylistRequest appends uri to the end of a playlist.
func AddToPlaylistRequest(playlistID, uri string) Request {
	return Request{
		Method: http.MethodPost,
		Path:   "/playlists/" + url.PathEscape(playlistID) + "/tracks",
		Body:   map[string][]string{"uris": {uri}},
	}
}

// SkipNextRequest skips to the next track.
func SkipNextRequest() Request {
	return Request{Method: http.MethodPost, Path: "/me/player/next"}
}

// FollowPlaylistRequest follows a playlist as the current user.
func FollowPlaylistRequest(playlistID string) Request {
	return Request{
		Method: http.MethodPut,
		Path:   "/playlists/" + url.PathEscape(playlistID) + "/followers",
		Body:   map[string]bool{"public": true},
	}
}

// CreatePlaylistRequest creates a playlist owned by userID.
func CreatePlaylistRequest(userID, name, description string, public bool) Request {
	return Request{
		Method: http.MethodPost,
		Path:   "/users/" + url.PathEscape(userID) + "/playlists",
		Body: map[string]any{
			"name":        name,
			"description": description,
			"public":      public,
		},
	}
}

// CurrentUserRequest fetches the profile of the token's owner.
func CurrentUserRequest() Request {
	return Request{Method: http.MethodGet, Path: "/me"}
}
