// moose-detector - detect moose and other warm wildlife in thermal video
//  Copyright (C) 2026, Mooseworks
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mooseworks/moose-detector/aggregate"
)

func testStore(t *testing.T) *Store {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEvent(id string) aggregate.Event {
	return aggregate.Event{
		ID:        id,
		Timestamp: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
		Label:     "moose",
		Score:     0.91,
		X:         40,
		Y:         60,
		Width:     30,
		Height:    20,
		FirstSeq:  12,
	}
}

func TestStartedEventStored(t *testing.T) {
	store := testStore(t)
	store.DetectionStarted(testEvent("a"))

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "a", r.ID)
	assert.Equal(t, "moose", r.Label)
	assert.Equal(t, 0.91, r.Score)
	assert.Equal(t, 40, r.X)
	assert.Equal(t, uint64(12), r.FirstSeq)
	assert.True(t, r.EndedAt.IsZero())
	assert.Equal(t, uint64(0), r.LastSeq)
}

func TestEndedEventFinalised(t *testing.T) {
	store := testStore(t)

	e := testEvent("a")
	store.DetectionStarted(e)

	e.LastSeq = 47
	e.Score = 0.95
	store.DetectionEnded(e)

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.False(t, r.EndedAt.IsZero())
	assert.Equal(t, uint64(47), r.LastSeq)
	assert.Equal(t, 0.95, r.Score)
}

func TestRecentOrderAndLimit(t *testing.T) {
	store := testStore(t)

	for i, id := range []string{"a", "b", "c"} {
		e := testEvent(id)
		e.Timestamp = e.Timestamp.Add(time.Duration(i) * time.Minute)
		store.DetectionStarted(e)
	}

	records, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.db")

	store, err := Open(path)
	require.NoError(t, err)
	store.DetectionStarted(testEvent("a"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
}
