// Package drive stores the remote ledger document in the Google Drive
// application data folder, one JSON file per identity. It authenticates
// with service account credentials from the environment, following the
// same credential resolution order as the rest of the Google tooling.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"monthly/internal/remote"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
)

const defaultPollInterval = 30 * time.Second

type Client struct {
	svc          *gdrive.Service
	pollInterval time.Duration
}

var (
	_ remote.Store   = (*Client)(nil)
	_ remote.Watcher = (*Client)(nil)
)

// NewFromEnv creates a Drive client using service account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	credentialsJSON, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gdrive.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gdrive.DriveAppdataScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}

	pollInterval := defaultPollInterval
	if v := strings.TrimSpace(os.Getenv("DRIVE_POLL_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= time.Second {
			pollInterval = d
		}
	}

	return &Client{svc: svc, pollInterval: pollInterval}, nil
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", serviceAccountFile)
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func documentName(identity string) string {
	return "ledger-" + identity + ".json"
}

// Load fetches and decodes the identity's ledger document.
func (c *Client) Load(ctx context.Context, identity string) (remote.Document, bool, error) {
	fileID, _, err := c.findFile(ctx, identity)
	if err != nil {
		return remote.Document{}, false, err
	}
	if fileID == "" {
		return remote.Document{}, false, nil
	}

	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return remote.Document{}, false, fmt.Errorf("download ledger document: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return remote.Document{}, false, fmt.Errorf("read ledger document: %w", err)
	}

	var doc remote.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return remote.Document{}, false, fmt.Errorf("decode ledger document: %w", err)
	}
	return doc, true, nil
}

// Save uploads the document, creating the file on first sync and
// overwriting it afterwards.
func (c *Client) Save(ctx context.Context, identity string, doc remote.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode ledger document: %w", err)
	}

	fileID, _, err := c.findFile(ctx, identity)
	if err != nil {
		return err
	}

	if fileID == "" {
		meta := &gdrive.File{
			Name:     documentName(identity),
			Parents:  []string{"appDataFolder"},
			MimeType: "application/json",
		}
		created, err := c.svc.Files.Create(meta).
			Media(bytes.NewReader(data), googleapi.ContentType("application/json")).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("create ledger document: %w", err)
		}
		slog.InfoContext(ctx, "Created remote ledger document",
			"identity", identity, "file_id", created.Id, "bytes", len(data))
		return nil
	}

	if _, err := c.svc.Files.Update(fileID, &gdrive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType("application/json")).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("update ledger document: %w", err)
	}

	slog.InfoContext(ctx, "Updated remote ledger document",
		"identity", identity, "file_id", fileID, "bytes", len(data))
	return nil
}

// Watch polls the document's modifiedTime and emits the new snapshot when
// it changes. Drive has no push channel for appDataFolder files, so this
// is the live-update feed.
func (c *Client) Watch(ctx context.Context, identity string) (<-chan remote.Document, error) {
	_, lastModified, err := c.findFile(ctx, identity)
	if err != nil {
		return nil, err
	}

	ch := make(chan remote.Document, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			_, modified, err := c.findFile(ctx, identity)
			if err != nil {
				slog.WarnContext(ctx, "Remote change poll failed", "identity", identity, "error", err)
				continue
			}
			if modified == "" || modified == lastModified {
				continue
			}
			lastModified = modified

			doc, ok, err := c.Load(ctx, identity)
			if err != nil {
				slog.WarnContext(ctx, "Remote change fetch failed", "identity", identity, "error", err)
				continue
			}
			if !ok {
				continue
			}
			select {
			case ch <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// findFile resolves the document's file ID and modifiedTime, returning
// empty strings when the identity has no document yet.
func (c *Client) findFile(ctx context.Context, identity string) (fileID, modifiedTime string, err error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", documentName(identity))
	list, err := c.svc.Files.List().
		Spaces("appDataFolder").
		Q(query).
		Fields("files(id, name, modifiedTime)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("list ledger documents: %w", err)
	}
	if len(list.Files) == 0 {
		return "", "", nil
	}
	return list.Files[0].Id, list.Files[0].ModifiedTime, nil
}
