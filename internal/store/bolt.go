package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"

	bolt "go.etcd.io/bbolt"
)

var (
	articlesBucket = []byte("articles")
	urlsBucket     = []byte("urls")
)

// BoltStore keeps articles in a single bbolt file. Writes are serialized by
// bbolt, so the URL check and insert in one transaction are atomic.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
	log logger.Logger
}

// articleRecord is the JSON form of a stored article.
type articleRecord struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Source         string     `json:"source"`
	Content        string     `json:"content"`
	Summary        string     `json:"summary"`
	Author         string     `json:"author"`
	PublishedDate  *time.Time `json:"published_date,omitempty"`
	ImageURL       string     `json:"image_url"`
	Tags           []string   `json:"tags"`
	Keywords       []string   `json:"keywords"`
	Categories     []string   `json:"categories"`
	RelevanceScore int        `json:"relevance_score"`
	TimePeriod     string     `json:"time_period"`
	ScrapedAt      time.Time  `json:"scraped_at"`
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string, log logger.Logger) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store path is empty")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{articlesBucket, urlsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log = logger.Ensure(log)
	log.InfoObj("article store opened", "store_open", map[string]any{
		"driver": DriverBolt,
		"path":   path,
	})

	return &BoltStore{db: db, now: time.Now, log: log}, nil
}

// FindByURL returns the article stored under url.
func (s *BoltStore) FindByURL(ctx context.Context, url string) (domain.StoredArticle, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredArticle{}, err
	}

	var out domain.StoredArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(urlsBucket).Get([]byte(url))
		if id == nil {
			return ErrNotFound
		}
		raw := tx.Bucket(articlesBucket).Get(id)
		if raw == nil {
			return ErrNotFound
		}
		var err error
		out, err = decodeRecord(raw)
		return err
	})
	return out, err
}

// Insert stores a single article if its URL is new.
func (s *BoltStore) Insert(ctx context.Context, a domain.Article) (domain.StoredArticle, bool, error) {
	inserted, err := s.InsertBatch(ctx, []domain.Article{a})
	if err != nil {
		return domain.StoredArticle{}, false, err
	}
	if len(inserted) == 1 {
		return inserted[0], true, nil
	}
	existing, err := s.FindByURL(ctx, a.URL)
	return existing, false, err
}

// InsertBatch writes all new articles in one transaction.
func (s *BoltStore) InsertBatch(ctx context.Context, articles []domain.Article) ([]domain.StoredArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return []domain.StoredArticle{}, nil
	}

	now := s.now()
	var inserted []domain.StoredArticle

	err := s.db.Update(func(tx *bolt.Tx) error {
		inserted = inserted[:0]
		arts := tx.Bucket(articlesBucket)
		urls := tx.Bucket(urlsBucket)

		for _, a := range articles {
			if a.URL == "" {
				continue
			}
			if urls.Get([]byte(a.URL)) != nil {
				continue
			}

			seq, err := arts.NextSequence()
			if err != nil {
				return fmt.Errorf("next id: %w", err)
			}
			stored := newStored(int64(seq), a, now)

			raw, err := json.Marshal(toRecord(stored))
			if err != nil {
				return fmt.Errorf("encode article %s: %w", a.URL, err)
			}
			key := itob(stored.ID)
			if err := arts.Put(key, raw); err != nil {
				return fmt.Errorf("put article: %w", err)
			}
			if err := urls.Put([]byte(a.URL), key); err != nil {
				return fmt.Errorf("put url index: %w", err)
			}
			inserted = append(inserted, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if inserted == nil {
		inserted = []domain.StoredArticle{}
	}
	return inserted, nil
}

// Get returns the article with the given id.
func (s *BoltStore) Get(ctx context.Context, id int64) (domain.StoredArticle, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredArticle{}, err
	}

	var out domain.StoredArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(articlesBucket).Get(itob(id))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		out, err = decodeRecord(raw)
		return err
	})
	return out, err
}

// List scans every article, applies f and returns the requested page.
func (s *BoltStore) List(ctx context.Context, f Filter) ([]domain.StoredArticle, error) {
	var matched []domain.StoredArticle
	err := s.each(ctx, func(a domain.StoredArticle) {
		if f.Match(a) {
			matched = append(matched, a)
		}
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(matched)
	out := paginate(matched, f.Offset, f.Limit)
	if out == nil {
		out = []domain.StoredArticle{}
	}
	return out, nil
}

// Delete removes the article and its URL index entry.
func (s *BoltStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		arts := tx.Bucket(articlesBucket)
		key := itob(id)
		raw := arts.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		a, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if err := tx.Bucket(urlsBucket).Delete([]byte(a.URL)); err != nil {
			return fmt.Errorf("delete url index: %w", err)
		}
		return arts.Delete(key)
	})
}

// Count returns the number of stored articles.
func (s *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(articlesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// CountByCategory counts articles per category. An article counts once for each of its categories.
func (s *BoltStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.each(ctx, func(a domain.StoredArticle) {
		for _, c := range a.Categories {
			counts[c]++
		}
	})
	return counts, err
}

// CountBySource counts articles per source name.
func (s *BoltStore) CountBySource(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.each(ctx, func(a domain.StoredArticle) {
		counts[a.Source]++
	})
	return counts, err
}

// DistinctSources returns the sorted set of source names.
func (s *BoltStore) DistinctSources(ctx context.Context) ([]string, error) {
	counts, err := s.CountBySource(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(counts))
	for name := range counts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// DateRange returns the earliest and latest publication dates.
func (s *BoltStore) DateRange(ctx context.Context) (DateRange, error) {
	var r DateRange
	err := s.each(ctx, func(a domain.StoredArticle) {
		if !a.HasDate() {
			return
		}
		if r.Earliest.IsZero() || a.PublishedAt.Before(r.Earliest) {
			r.Earliest = a.PublishedAt
		}
		if r.Latest.IsZero() || a.PublishedAt.After(r.Latest) {
			r.Latest = a.PublishedAt
		}
	})
	return r, err
}

// Close closes the underlying file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) each(ctx context.Context, fn func(domain.StoredArticle)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(articlesBucket).ForEach(func(_, raw []byte) error {
			a, err := decodeRecord(raw)
			if err != nil {
				return err
			}
			fn(a)
			return nil
		})
	})
}

func toRecord(a domain.StoredArticle) articleRecord {
	rec := articleRecord{
		ID:             a.ID,
		Title:          a.Title,
		URL:            a.URL,
		Source:         a.Source,
		Content:        a.Content,
		Summary:        a.Summary,
		Author:         a.Author,
		ImageURL:       a.ImageURL,
		Tags:           a.Tags,
		Keywords:       a.Keywords,
		Categories:     a.Categories,
		RelevanceScore: a.RelevanceScore,
		TimePeriod:     a.TimePeriod,
		ScrapedAt:      a.ScrapedAt,
	}
	if a.HasDate() {
		t := a.PublishedAt
		rec.PublishedDate = &t
	}
	return rec
}

func decodeRecord(raw []byte) (domain.StoredArticle, error) {
	var rec articleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.StoredArticle{}, fmt.Errorf("decode article: %w", err)
	}

	a := domain.StoredArticle{
		ID: rec.ID,
		Article: domain.Article{
			Title:          rec.Title,
			URL:            rec.URL,
			Source:         rec.Source,
			Content:        rec.Content,
			Summary:        rec.Summary,
			Author:         rec.Author,
			ImageURL:       rec.ImageURL,
			Tags:           rec.Tags,
			Keywords:       nonNil(rec.Keywords),
			Categories:     nonNil(rec.Categories),
			RelevanceScore: rec.RelevanceScore,
		},
		ScrapedAt:  rec.ScrapedAt,
		TimePeriod: rec.TimePeriod,
	}
	if rec.PublishedDate != nil {
		a.PublishedAt = rec.PublishedDate.UTC()
	}
	return a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// itob encodes ids big-endian so bbolt keeps them in numeric order.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
