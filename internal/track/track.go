// Package track persists the latest promotion snapshot per competitor
// and classifies each new record as new, updated, or unchanged
// relative to the prior run.
package track

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"promowatch/internal/model"
)

// Store keeps one JSON document per competitor under a base directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) path(competitor string) string {
	name := strings.ToLower(strings.TrimSpace(competitor))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(s.dir, name+".json")
}

// Load returns the prior snapshot keyed by record identity. A missing
// or corrupt file yields an empty snapshot, so every incoming record
// classifies as new.
func (s *Store) Load(competitor string) map[string]model.StandardPromo {
	snapshot := make(map[string]model.StandardPromo)
	data, err := os.ReadFile(s.path(competitor))
	if err != nil {
		return snapshot
	}
	var doc model.RunDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		if s.logger != nil {
			s.logger.Warn("snapshot_unreadable", "competitor", competitor, "error", err)
		}
		return snapshot
	}
	for _, p := range doc.Promotions {
		snapshot[p.Key()] = p
	}
	return snapshot
}

// Replace atomically writes the new run document for a competitor.
// The write goes to a temp file in the same directory and is renamed
// into place, so readers never observe a partial document.
func (s *Store) Replace(competitor string, promos []model.StandardPromo) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}
	doc := model.RunDocument{
		Competitor: competitor,
		ScrapedAt:  time.Now().UTC().Format(time.RFC3339),
		Promotions: promos,
		Count:      len(promos),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path(competitor)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Read returns the stored run document without indexing it, for the
// read API.
func (s *Store) Read(competitor string) (*model.RunDocument, error) {
	data, err := os.ReadFile(s.path(competitor))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var doc model.RunDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &doc, nil
}

// List returns the competitor slugs that currently have a snapshot.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

// Classify stamps each record's change status against the prior
// snapshot. Identity is page URL plus service name; a record is
// unchanged only when service name, description, and offer details
// all match its predecessor.
func Classify(previous map[string]model.StandardPromo, promos []model.StandardPromo) []model.StandardPromo {
	out := make([]model.StandardPromo, len(promos))
	for i, p := range promos {
		prior, ok := previous[p.Key()]
		switch {
		case !ok:
			p.ChangeStatus = model.StatusNew
		case prior.ServiceName == p.ServiceName &&
			prior.PromoDescription == p.PromoDescription &&
			prior.OfferDetails == p.OfferDetails:
			p.ChangeStatus = model.StatusSame
		default:
			p.ChangeStatus = model.StatusUpdated
		}
		out[i] = p
	}
	return out
}
