package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRec(id string, phases []int, batches ...string) *CanonicalRecommendation {
	now := time.Now().UTC()
	return &CanonicalRecommendation{
		ID:             id,
		CanonicalText:  "Add model versioning",
		PhaseIDs:       phases,
		Priority:       PriorityImportant,
		Confidence:     0.7,
		SourceBatchIDs: batches,
		Status:         StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input   string
		want    Priority
		wantErr bool
	}{
		{"critical", PriorityCritical, false},
		{"IMPORTANT", PriorityImportant, false},
		{"nice-to-have", PriorityNiceToHave, false},
		{"nice_to_have", PriorityNiceToHave, false},
		{"urgent", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestInitialConfidence(t *testing.T) {
	assert.Equal(t, 0.9, PriorityCritical.InitialConfidence())
	assert.Equal(t, 0.7, PriorityImportant.InitialConfidence())
	assert.Equal(t, 0.5, PriorityNiceToHave.InitialConfidence())
}

func TestRecommendationText(t *testing.T) {
	rec := Recommendation{Title: "Add versioning", Description: "for models"}
	assert.Equal(t, "Add versioning for models", rec.Text())

	rec = Recommendation{Title: "Add versioning"}
	assert.Equal(t, "Add versioning", rec.Text())
}

func TestFingerprintStable(t *testing.T) {
	a := Recommendation{Title: "Add versioning", BatchID: "book1"}
	b := Recommendation{Title: "Add versioning", BatchID: "book1"}
	c := Recommendation{Title: "Add versioning", BatchID: "book2"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestInsertAndGet(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newRec("r1", []int{5}, "book1")))

	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 1, s.Len())

	// Returned copies must not alias internal state.
	got.SourceBatchIDs[0] = "tampered"
	fresh, _ := s.Get("r1")
	assert.Equal(t, "book1", fresh.SourceBatchIDs[0])
}

func TestInsertDuplicateID(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newRec("r1", []int{5}, "book1")))
	assert.Error(t, s.Insert(newRec("r1", []int{5}, "book2")))
}

func TestInsertDuplicateFingerprint(t *testing.T) {
	s := New()
	r1 := newRec("r1", []int{5}, "book1")
	r1.Fingerprints = []string{"fp-a"}
	require.NoError(t, s.Insert(r1))

	r2 := newRec("r2", []int{5}, "book2")
	r2.Fingerprints = []string{"fp-a"}
	assert.Error(t, s.Insert(r2))
}

func TestByPhaseBuckets(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newRec("r1", []int{1, 2}, "book1")))
	require.NoError(t, s.Insert(newRec("r2", []int{2}, "book2")))
	require.NoError(t, s.Insert(newRec("r3", nil, "book3")))

	assert.Len(t, s.ByPhase(1), 1)
	assert.Len(t, s.ByPhase(2), 2)
	assert.Len(t, s.ByPhase(UnphasedBucket), 1)
	assert.Empty(t, s.ByPhase(9))
}

func TestUpdateInvariants(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newRec("r1", []int{5}, "book1")))

	t.Run("confidence may not decrease", func(t *testing.T) {
		rec, _ := s.Get("r1")
		rec.Confidence = 0.5
		assert.Error(t, s.Update(rec))
	})

	t.Run("sources may not shrink", func(t *testing.T) {
		rec, _ := s.Get("r1")
		rec.SourceBatchIDs = nil
		assert.Error(t, s.Update(rec))
	})

	t.Run("source order may not change", func(t *testing.T) {
		rec, _ := s.Get("r1")
		rec.SourceBatchIDs = []string{"book2", "book1"}
		assert.Error(t, s.Update(rec))
	})

	t.Run("additive merge is accepted", func(t *testing.T) {
		rec, _ := s.Get("r1")
		rec.SourceBatchIDs = append(rec.SourceBatchIDs, "book2")
		rec.Confidence = 0.775
		rec.Status = StatusMerged
		require.NoError(t, s.Update(rec))

		got, _ := s.Get("r1")
		assert.Equal(t, []string{"book1", "book2"}, got.SourceBatchIDs)
		assert.Equal(t, 0.775, got.Confidence)
	})
}

func TestUpdateReindexesPhases(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newRec("r1", []int{1}, "book1")))

	rec, _ := s.Get("r1")
	rec.PhaseIDs = []int{1, 2}
	require.NoError(t, s.Update(rec))

	assert.Len(t, s.ByPhase(1), 1)
	assert.Len(t, s.ByPhase(2), 1)
}

func TestOwnerOf(t *testing.T) {
	s := New()
	r1 := newRec("r1", []int{5}, "book1")
	r1.Fingerprints = []string{"fp-a"}
	require.NoError(t, s.Insert(r1))

	owner, ok := s.OwnerOf("fp-a")
	require.True(t, ok)
	assert.Equal(t, "r1", owner)

	_, ok = s.OwnerOf("fp-unknown")
	assert.False(t, ok)
}

func TestCloneIsolation(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newRec("r1", []int{5}, "book1")))

	staged := s.Clone()
	require.NoError(t, staged.Insert(newRec("r2", []int{5}, "book2")))

	// Staging must not leak into the original until committed.
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, staged.Len())

	// Mutating a clone's record must not alias the original.
	rec, ok := staged.Get("r1")
	require.True(t, ok)
	rec.Confidence = 0.99
	require.NoError(t, staged.Update(rec))
	orig, ok := s.Get("r1")
	require.True(t, ok)
	assert.NotEqual(t, 0.99, orig.Confidence)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	s := New()
	r1 := newRec("r1", []int{1, 2}, "book1", "book2")
	r1.Fingerprints = []string{"fp-a", "fp-b"}
	require.NoError(t, s.Insert(r1))
	require.NoError(t, s.Insert(newRec("r2", nil, "book3")))
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())

	got, ok := loaded.Get("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"book1", "book2"}, got.SourceBatchIDs)
	assert.Len(t, loaded.ByPhase(UnphasedBucket), 1)

	owner, ok := loaded.OwnerOf("fp-a")
	require.True(t, ok)
	assert.Equal(t, "r1", owner)
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
