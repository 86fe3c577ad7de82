package search

import (
	"testing"

	"github.com/railwatch/crtm/internal/testutil"
)

func finding(train, summary string) Finding {
	return Finding{
		Train:      train,
		FromName:   "广州南",
		ToName:     "长沙南",
		DepartTime: "08:00",
		ArriveTime: "10:30",
		Summary:    summary,
		Link:       "https://example.test/book",
	}
}

func TestFindingLine(t *testing.T) {
	f := finding("G1", "二等座 有 / 硬座 5")
	testutil.AssertEqual(t, f.Line(), "G1 广州南→长沙南(08:00->10:30) 二等座 有 / 硬座 5\n[Book](https://example.test/book)")

	f.Link = ""
	testutil.AssertEqual(t, f.Line(), "G1 广州南→长沙南(08:00->10:30) 二等座 有 / 硬座 5")
}

func TestRouteKeyString(t *testing.T) {
	k := RouteKey{Date: "2026-10-20", From: "广州南", To: "长沙南"}
	testutil.AssertEqual(t, k.String(), "2026-10-20_广州南_长沙南")
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	k1 := RouteKey{Date: "2026-10-20", From: "A", To: "B"}
	k2 := RouteKey{Date: "2026-10-20", From: "A", To: "C"}

	testutil.AssertTrue(t, c.Add(k1, finding("G1", "硬座 5")))
	testutil.AssertTrue(t, c.Add(k2, finding("G2", "硬座 1")))
	testutil.AssertTrue(t, c.Add(k1, finding("G3", "硬座 2")))

	// Same rendered line under the same route is dropped
	dup := finding("G1", "硬座 5")
	dup.Pass = PassBoth
	testutil.AssertFalse(t, c.Add(k1, dup))
	// but is kept under another route
	testutil.AssertTrue(t, c.Add(k2, dup))

	testutil.AssertEqual(t, c.Len(), 2)
	testutil.AssertEqual(t, c.Total(), 4)

	routes := c.Routes()
	testutil.AssertEqual(t, routes[0], k1)
	testutil.AssertEqual(t, routes[1], k2)

	lines := c.Lines(k1)
	testutil.AssertLen(t, lines, 2)
	testutil.AssertContains(t, lines[0], "G1")
	testutil.AssertContains(t, lines[1], "G3")

	snap := c.Snapshot()
	testutil.AssertLen(t, snap, 2)
	testutil.AssertLen(t, snap[1].Findings, 2)

	c.Reset()
	testutil.AssertEqual(t, c.Len(), 0)
	testutil.AssertLen(t, c.Findings(k1), 0)
	testutil.AssertTrue(t, c.Add(k1, finding("G1", "硬座 5")))
}
