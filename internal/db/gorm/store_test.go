package gorm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/thebtf/chorus/pkg/models"
)

// testStore creates a Store backed by a temp-dir SQLite database with
// migrations applied.
func testStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	store, err := NewStore(Config{
		Path:     filepath.Join(dir, "chorus-test.db"),
		MaxConns: 2,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })
	return store
}

type StoreSuite struct {
	suite.Suite
	store       *Store
	comments    *CommentStore
	annotations *AnnotationStore
	ledger      *LedgerStore
	ctx         context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = testStore(s.T())
	s.comments = NewCommentStore(s.store)
	s.annotations = NewAnnotationStore(s.store)
	s.ledger = NewLedgerStore(s.store)
	s.ctx = context.Background()
}

// testComment builds a comment for parentURI with a deterministic timestamp
// offset so stored order matches insertion order.
func (s *StoreSuite) testComment(id, parentURI string, offset int) *models.Comment {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second)
	return models.NewComment(
		id,
		models.PostRef{URI: parentURI, CID: "cid-" + parentURI},
		models.PostRef{URI: "at://did:plc:me/app.bsky.feed.post/" + id, CID: "cid-" + id},
		"commenter.example.com",
		"text for "+id,
		[]float32{0.1, 0.2, 0.3},
		created,
	)
}

func (s *StoreSuite) TestStorePing() {
	s.NoError(s.store.Ping())
}

func (s *StoreSuite) TestInsertIfAbsent_DuplicateIsNoOp() {
	c := s.testComment("c1", "at://post/1", 0)

	inserted, err := s.comments.InsertIfAbsent(s.ctx, c)
	s.Require().NoError(err)
	s.True(inserted)

	dup := s.testComment("c1", "at://post/1", 0)
	dup.Text = "changed text must not overwrite"
	inserted, err = s.comments.InsertIfAbsent(s.ctx, dup)
	s.Require().NoError(err)
	s.False(inserted)

	got, err := s.comments.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("text for c1", got.Text)
}

func (s *StoreSuite) TestEmbeddingRoundTrip() {
	c := s.testComment("c-embed", "at://post/embed", 0)
	c.Embedding = models.JSONFloat32Array{0.123456, -0.5, 42.0, 0, 1e-7}

	_, err := s.comments.InsertIfAbsent(s.ctx, c)
	s.Require().NoError(err)

	fetched, err := s.comments.GetByParent(s.ctx, "at://post/embed")
	s.Require().NoError(err)
	s.Require().Len(fetched, 1)
	s.Equal(c.Embedding, fetched[0].Embedding)
}

func (s *StoreSuite) TestGetByParent_StoredOrder() {
	for i, id := range []string{"b", "c", "a"} {
		_, err := s.comments.InsertIfAbsent(s.ctx, s.testComment(id, "at://post/order", i))
		s.Require().NoError(err)
	}

	fetched, err := s.comments.GetByParent(s.ctx, "at://post/order")
	s.Require().NoError(err)
	s.Require().Len(fetched, 3)
	s.Equal("b", fetched[0].ID)
	s.Equal("c", fetched[1].ID)
	s.Equal("a", fetched[2].ID)
}

func (s *StoreSuite) TestCountsByParent() {
	for i := 0; i < 4; i++ {
		_, err := s.comments.InsertIfAbsent(s.ctx, s.testComment("busy-"+string(rune('a'+i)), "at://post/busy", i))
		s.Require().NoError(err)
	}
	_, err := s.comments.InsertIfAbsent(s.ctx, s.testComment("quiet-a", "at://post/quiet", 0))
	s.Require().NoError(err)

	counts, err := s.comments.CountsByParent(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(counts, 2)
	s.Equal("at://post/busy", counts[0].ParentURI)
	s.Equal(4, counts[0].Count)
	s.Equal("cid-at://post/busy", counts[0].ParentCID)
	s.Equal("at://post/quiet", counts[1].ParentURI)
	s.Equal(1, counts[1].Count)
}

func (s *StoreSuite) TestMarkProcessedAndClear() {
	for i, id := range []string{"p1", "p2", "p3"} {
		_, err := s.comments.InsertIfAbsent(s.ctx, s.testComment(id, "at://post/proc", i))
		s.Require().NoError(err)
	}

	s.Require().NoError(s.comments.MarkProcessed(s.ctx, []string{"p1", "p3"}))

	processed, err := s.comments.CountProcessed(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), processed)

	s.Require().NoError(s.comments.ClearProcessedByParent(s.ctx, "at://post/proc"))

	processed, err = s.comments.CountProcessed(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), processed)
}

func (s *StoreSuite) TestAnnotationLifecycle() {
	parent := models.PostRef{URI: "at://post/ann", CID: "cid-ann"}

	stale := models.NewAnnotation(parent, "stale, never published", []string{"c1"})
	published := models.NewAnnotation(parent, "published earlier", []string{"c2"})
	s.Require().NoError(s.annotations.Create(s.ctx, stale))
	s.Require().NoError(s.annotations.Create(s.ctx, published))
	s.Require().NoError(s.annotations.MarkPosted(s.ctx, published.ID, "at://did:plc:me/app.bsky.feed.post/reply1"))

	deleted, err := s.annotations.DeleteUnpostedByParent(s.ctx, parent.URI)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	remaining, err := s.annotations.GetByParent(s.ctx, parent.URI)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(published.ID, remaining[0].ID)
	s.True(remaining[0].Posted)
	s.Equal("at://did:plc:me/app.bsky.feed.post/reply1", remaining[0].PostedURI)

	posted, err := s.annotations.CountPosted(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), posted)

	deleted, err = s.annotations.DeleteByParent(s.ctx, parent.URI)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)
}

func (s *StoreSuite) TestLedgerUpsertOverwrites() {
	ref := models.PostRef{URI: "at://post/ledger", CID: "cid-ledger"}

	record, err := s.ledger.Get(s.ctx, ref.URI)
	s.Require().NoError(err)
	s.Nil(record)

	s.Require().NoError(s.ledger.Upsert(s.ctx, models.NewPostRecord(ref, 1)))
	s.Require().NoError(s.ledger.Upsert(s.ctx, models.NewPostRecord(ref, 2)))

	record, err = s.ledger.Get(s.ctx, ref.URI)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(2, record.AnnotationCount)

	count, err := s.ledger.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	s.Require().NoError(s.ledger.Delete(s.ctx, ref.URI))
	record, err = s.ledger.Get(s.ctx, ref.URI)
	s.Require().NoError(err)
	s.Nil(record)
}
