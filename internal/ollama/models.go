package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ListModels returns the models known to the server. Both the current
// {"models":[...]} answer and the older bare array are accepted, and array
// entries may be objects or plain names.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, http.MethodGet, "/api/tags", nil, &raw); err != nil {
		return nil, err
	}
	return decodeTags(raw)
}

func decodeTags(raw json.RawMessage) ([]Model, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Models []json.RawMessage `json:"models"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		return decodeModelList(wrapped.Models)
	}
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		return decodeModelList(items)
	}
	return nil, errors.New("decode tags: unrecognized payload")
}

func decodeModelList(items []json.RawMessage) ([]Model, error) {
	out := make([]Model, 0, len(items))
	for _, it := range items {
		var name string
		if json.Unmarshal(it, &name) == nil {
			out = append(out, Model{Name: name})
			continue
		}
		var m Model
		if err := json.Unmarshal(it, &m); err != nil {
			return nil, fmt.Errorf("decode tags entry: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// HasModel reports whether name is available locally. A bare name matches
// its ":latest" tag.
func HasModel(models []Model, name string) bool {
	for _, m := range models {
		if m.Name == name || m.Name == name+":latest" || strings.TrimSuffix(m.Name, ":latest") == name {
			return true
		}
	}
	return false
}

// Pull downloads a model, reporting each progress line to onProgress.
// Lines that are not JSON are skipped; a line carrying "error" aborts.
func (c *Client) Pull(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/pull", map[string]any{"name": name, "stream": true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)
	for {
		line, rerr := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" {
			var msg struct {
				PullProgress
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(l), &msg); err != nil {
				c.log.Debug().Str("line", l).Msg("pull: skipping undecodable line")
			} else if msg.Error != "" {
				return fmt.Errorf("pull %s: %s", name, msg.Error)
			} else if onProgress != nil {
				onProgress(msg.PullProgress)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pull %s: %w", name, rerr)
		}
	}
}
