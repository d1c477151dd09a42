package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/bus"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/lesson"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "history.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Results(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	entries := []*ResultEntry{
		{AttemptID: "a1", LessonID: "1", Score: 40, RecordedAt: base},
		{AttemptID: "a2", LessonID: "1", Score: 90, Label: "good", Transcription: "ohayou", RecordedAt: base.Add(time.Minute),
			Analysis: map[string]json.RawMessage{"pitch": json.RawMessage(`[1,2]`)}},
		{AttemptID: "a3", LessonID: "2", Score: 70, RecordedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := s.RecordResult(ctx, e); err != nil {
			t.Fatalf("RecordResult() error = %v", err)
		}
		if e.ID == "" {
			t.Error("RecordResult() did not assign an id")
		}
	}

	// Same attempt again is ignored
	if err := s.RecordResult(ctx, &ResultEntry{AttemptID: "a2", LessonID: "1", Score: 10}); err != nil {
		t.Fatalf("duplicate RecordResult() error = %v", err)
	}

	got, err := s.Results(ctx, "1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Results(1) = %d entries, want 2", len(got))
	}
	if got[0].AttemptID != "a2" || got[0].Score != 90 || got[0].Label != "good" || got[0].Transcription != "ohayou" {
		t.Errorf("newest result = %+v", got[0])
	}
	if string(got[0].Analysis["pitch"]) != "[1,2]" {
		t.Errorf("Analysis = %v", got[0].Analysis)
	}

	all, err := s.Results(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].LessonID != "2" {
		t.Errorf("Results(all, 2) = %+v", all)
	}

	if err := s.RecordResult(ctx, &ResultEntry{Score: 1}); !hterror.HasCode(err, hterror.CodeInvalidInput) {
		t.Errorf("RecordResult without lesson = %v, want INVALID_INPUT", err)
	}
}

func TestSQLiteStore_LessonStats(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for i, score := range []float64{40, 90, 80} {
		s.RecordResult(ctx, &ResultEntry{AttemptID: "x" + string(rune('a'+i)), LessonID: "1", Score: score})
	}
	s.RecordResult(ctx, &ResultEntry{AttemptID: "y", LessonID: "2", Score: 55})

	stats, err := s.LessonStats(ctx)
	if err != nil {
		t.Fatalf("LessonStats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("LessonStats() = %d, want 2", len(stats))
	}
	st := stats[0]
	if st.LessonID != "1" || st.Attempts != 3 || st.Best != 90 || st.Average != 70 {
		t.Errorf("stats[0] = %+v", st)
	}
	if st.Last.IsZero() {
		t.Error("Last not parsed")
	}
}

func TestSQLiteStore_Sessions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now()

	older := &SessionEntry{FinishedAt: now.Add(-time.Hour), Aggregate: 50, Lessons: 3,
		Scores: []SessionScore{{"1", 100}, {"2", 0}, {"3", 50}}}
	newer := &SessionEntry{FinishedAt: now, Aggregate: 85, Lessons: 3, Skipped: 1,
		Scores: []SessionScore{{"1", 80}, {"3", 90}}}
	for _, e := range []*SessionEntry{older, newer} {
		if err := s.SaveSession(ctx, e); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	got, err := s.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentSessions() = %d, want 2", len(got))
	}
	if got[0].ID != newer.ID || got[0].Aggregate != 85 || got[0].Skipped != 1 || len(got[0].Scores) != 2 {
		t.Errorf("newest session = %+v", got[0])
	}
	if got[1].Scores[2].LessonID != "3" {
		t.Errorf("older scores = %+v", got[1].Scores)
	}

	limited, _ := s.RecentSessions(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("RecentSessions(1) = %d", len(limited))
	}
}

func TestSQLiteStore_Prune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	s.RecordResult(ctx, &ResultEntry{AttemptID: "old", LessonID: "1", Score: 1, RecordedAt: old})
	s.RecordResult(ctx, &ResultEntry{AttemptID: "new", LessonID: "1", Score: 2})
	s.SaveSession(ctx, &SessionEntry{FinishedAt: old})

	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	if got, _ := s.Results(ctx, "", 0); len(got) != 1 || got[0].AttemptID != "new" {
		t.Errorf("remaining results = %+v", got)
	}
}

func TestRecorder(t *testing.T) {
	s := openStore(t)
	b := bus.New()
	r := NewRecorder(s, nil)
	detach := r.Attach(b)

	ev := feedback.Parse([]byte(`{"status":"feedback","score":72,"transcription":"konbanwa","expected_text":"こんばんは"}`))
	b.Publish(ev.Stamp("att-1", "3"))
	b.Publish(ev.Stamp("att-1", "3"))
	b.Publish(feedback.Event{Kind: feedback.KindChunkAck, Ack: &feedback.ChunkAck{ChunkSize: 1, TotalChunks: 1}}.Stamp("att-1", "3"))
	detach()
	b.Publish(ev.Stamp("att-2", "3"))

	got, err := s.Results(context.Background(), "3", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].AttemptID != "att-1" || got[0].Score != 72 {
		t.Fatalf("recorded = %+v, want one result of att-1", got)
	}
	if got[0].Label != feedback.DefaultLabel(72) {
		t.Errorf("Label = %q, want default label", got[0].Label)
	}

	r.OnComplete(lesson.Summary{
		Scores:     []lesson.Entry{{LessonID: "3", Score: 72}},
		Aggregate:  72,
		Lessons:    1,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	})
	sessions, _ := s.RecentSessions(context.Background(), 0)
	if len(sessions) != 1 || sessions[0].Aggregate != 72 || sessions[0].Scores[0].LessonID != "3" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestOpen_BadPath(t *testing.T) {
	dir := t.TempDir()
	// A file where the directory should be
	blocker := filepath.Join(dir, "file")
	first, err := Open(Config{Path: blocker})
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	first.Close()
	if _, err := Open(Config{Path: filepath.Join(blocker, "sub", "history.db")}); !hterror.HasCode(err, hterror.CodeStorageError) {
		t.Errorf("Open() under a file = %v, want STORAGE_ERROR", err)
	}
}
