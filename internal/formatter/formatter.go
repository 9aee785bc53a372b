// package formatter renders queue views, track lists, and events as plain text, Markdown, and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
)

// TracksToCSV converts tracks to CSV with columns: Position, ID, Title, Artists, Duration, URI
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artists", "Duration", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Title,
			track.ArtistLine(),
			shared.FormatDuration(track.DurationMS),
			track.URI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// QueueToText renders a queue view for the terminal.
//
// An offline or failed view prints its message instead of a track list.
func QueueToText(view *models.QueueView) []byte {
	var buf bytes.Buffer

	switch {
	case view.Error != "":
		fmt.Fprintf(&buf, "Error: %s\n", view.Error)
		return buf.Bytes()
	case view.Message != "" && view.Current == nil:
		fmt.Fprintf(&buf, "%s\n", view.Message)
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Mode: %s\n", view.Mode)
	if view.Current != nil {
		state := "Paused"
		if view.IsPlaying {
			state = "Now playing"
		}
		fmt.Fprintf(&buf, "%s: %s - %s [%s / %s]\n", state, view.Current.ArtistLine(), view.Current.Title,
			shared.FormatDuration(view.ProgressMS), shared.FormatDuration(view.DurationMS))
	} else {
		buf.WriteString("Nothing playing\n")
	}

	if len(view.Upcoming) == 0 {
		buf.WriteString("\nUp next: nothing queued\n")
		return buf.Bytes()
	}

	buf.WriteString("\nUp next:\n")
	for i, track := range view.Upcoming {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.ArtistLine(), track.Title, shared.FormatDuration(track.DurationMS))
	}

	return buf.Bytes()
}

// QueueToMarkdown renders a queue view as a Markdown document titled with the event name.
func QueueToMarkdown(eventName string, view *models.QueueView) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", eventName)
	fmt.Fprintf(&buf, "**Mode**: %s\n\n", view.Mode)

	if view.Message != "" {
		fmt.Fprintf(&buf, "> %s\n\n", view.Message)
	}

	if view.Current != nil {
		if cover := coverURL(*view.Current); cover != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", cover)
		}
		fmt.Fprintf(&buf, "**Now playing**: %s - %s [%s]\n\n", view.Current.ArtistLine(), view.Current.Title,
			shared.FormatDuration(view.DurationMS))
	}

	buf.WriteString("## Up next\n\n")
	for i, track := range view.Upcoming {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.ArtistLine(), track.Title, shared.FormatDuration(track.DurationMS))
	}

	return buf.Bytes()
}

// TracksToText lists tracks one per line with their URI, as printed for search results.
func TracksToText(tracks []models.Track) []byte {
	var buf bytes.Buffer

	if len(tracks) == 0 {
		buf.WriteString("No tracks found\n")
		return buf.Bytes()
	}

	for i, track := range tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n   %s\n", i+1, track.ArtistLine(), track.Title,
			shared.FormatDuration(track.DurationMS), track.URI)
	}

	return buf.Bytes()
}

// EventsToText lists events with their mode, playlist, and active host.
func EventsToText(events []*models.Event) []byte {
	var buf bytes.Buffer

	if len(events) == 0 {
		buf.WriteString("No active events\n")
		return buf.Bytes()
	}

	for _, e := range events {
		fmt.Fprintf(&buf, "%s  %s (%s)\n", e.ID(), e.Name(), e.Mode())
		if e.PlaylistID() != "" {
			fmt.Fprintf(&buf, "    playlist: %s\n", e.PlaylistID())
		}
		if e.ActiveHostEmail() != "" {
			fmt.Fprintf(&buf, "    host: %s\n", e.ActiveHostEmail())
		}
	}

	return buf.Bytes()
}

// coverURL picks the largest image of a track.
func coverURL(track models.Track) string {
	best := -1
	url := ""
	for _, img := range track.Images {
		if img.Width > best {
			best = img.Width
			url = img.URL
		}
	}
	return url
}

// WriteQueueExport writes a queue view to path in the given format (csv, md, txt).
//
// CSV exports contain the current track followed by the upcoming ones.
func WriteQueueExport(eventName string, view *models.QueueView, format, path string) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case "csv":
		tracks := make([]models.Track, 0, len(view.Upcoming)+1)
		if view.Current != nil {
			tracks = append(tracks, *view.Current)
		}
		data, err = TracksToCSV(append(tracks, view.Upcoming...))
	case "md", "markdown":
		data = QueueToMarkdown(eventName, view)
	case "txt", "text":
		data = QueueToText(view)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
