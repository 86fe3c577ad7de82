package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/railwatch/crtm/internal/search"
	"github.com/railwatch/crtm/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	testutil.AssertNil(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	clock := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	route := search.RouteKey{Date: "2026-10-20", From: "广州南", To: "长沙南"}
	testutil.AssertNil(t, s.Record(ctx, route, []search.Finding{
		{Train: "G1", TrainNo: "t1", FromName: "广州南", ToName: "长沙南", DepartTime: "08:00", ArriveTime: "10:20", Summary: "二等座 有", Total: "≥20", Pass: search.PassDirect},
		{Train: "G2", TrainNo: "t2", FromName: "广州南", ToName: "长沙南", DepartTime: "09:00", ArriveTime: "11:20", Summary: "硬座 3", Total: "3", Pass: search.PassOrigin},
	}))

	clock = clock.Add(time.Minute)
	later := search.RouteKey{Date: "2026-10-21", From: "武汉", To: "北京西"}
	testutil.AssertNil(t, s.Record(ctx, later, []search.Finding{
		{Train: "G3", TrainNo: "t3", Summary: "一等座 1", Total: "1", Pass: search.PassBoth},
	}))

	n, err := s.Count(ctx)
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, n, 3)

	entries, err := s.Recent(ctx, 2)
	testutil.AssertNil(t, err)
	testutil.AssertLen(t, entries, 2)
	testutil.AssertEqual(t, entries[0].Finding.Train, "G3")
	testutil.AssertEqual(t, entries[0].Route, later)
	testutil.AssertEqual(t, entries[0].Finding.Pass, search.PassBoth)
	testutil.AssertTrue(t, entries[0].ReportedAt.Equal(clock))
	// same timestamp falls back to insertion order, newest first
	testutil.AssertEqual(t, entries[1].Finding.Train, "G2")
	testutil.AssertEqual(t, entries[1].Finding.Summary, "硬座 3")
	testutil.AssertEqual(t, entries[1].Route, route)
}

func TestStore_RecordEmpty(t *testing.T) {
	s := openTestStore(t)
	testutil.AssertNil(t, s.Record(context.Background(), search.RouteKey{}, nil))

	n, err := s.Count(context.Background())
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, n, 0)
}

func TestStore_RecentDefaultLimit(t *testing.T) {
	s := openTestStore(t)
	entries, err := s.Recent(context.Background(), 0)
	testutil.AssertNil(t, err)
	testutil.AssertLen(t, entries, 0)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	testutil.AssertNil(t, err)
	testutil.AssertNil(t, s.Record(ctx, search.RouteKey{Date: "2026-10-20", From: "A", To: "B"}, []search.Finding{{Train: "G1"}}))
	testutil.AssertNil(t, s.Close())

	s, err = Open(ctx, path)
	testutil.AssertNil(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, n, 1)
}
