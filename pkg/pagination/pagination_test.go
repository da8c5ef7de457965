package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/menuboard-backend/pkg/db/dbtest"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0, 0))
	assert.Equal(t, 10, NormalizeLimit(0, 10))
	assert.Equal(t, 10, NormalizeLimit(-3, 10))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000, 10))
	assert.Equal(t, 7, NormalizeLimit(7, 10))
}

func TestCursorEncodeParse(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, parsed.CreatedAt.Equal(c.CreatedAt))
	assert.Equal(t, c.ID, parsed.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{
		"not a cursor!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("abc." + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("12.not-a-uuid")),
	} {
		_, err := ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestTrim(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	now := time.Now().UTC()
	rows := []row{{now, uuid.New()}, {now.Add(-time.Minute), uuid.New()}, {now.Add(-2 * time.Minute), uuid.New()}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := Trim(rows[:1], 2, cursorOf)
	assert.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)
}

type entry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

func TestNewestFirstWalksAllRowsOnce(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.AutoMigrate(&entry{}))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := map[uuid.UUID]bool{}
	for i := range 7 {
		// pairs share a timestamp so the id tiebreak matters
		e := entry{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i/2) * time.Second)}
		require.NoError(t, db.Create(&e).Error)
		seen[e.ID] = false
	}

	var cursor *Cursor
	pages := 0
	for {
		var rows []entry
		require.NoError(t, db.Scopes(NewestFirst(cursor)).Limit(3+1).Find(&rows).Error)
		page := Trim(rows, 3, func(e entry) Cursor { return Cursor{CreatedAt: e.CreatedAt, ID: e.ID} })
		pages++
		for _, e := range page.Items {
			assert.False(t, seen[e.ID], "row served twice")
			seen[e.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		next, err := ParseCursor(page.NextCursor)
		require.NoError(t, err)
		cursor = next
	}
	assert.Equal(t, 3, pages)
	for id, ok := range seen {
		assert.True(t, ok, id.String())
	}
}
