package testutil

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAssertions(t *testing.T) {
	AssertEqual(t, 42, 42)
	AssertEqual(t, "广州南", "广州南")
	AssertNil(t, nil)
	AssertError(t, errors.New("boom"))
	AssertContains(t, "G1002 二等座 有", "二等座")
	AssertNotContains(t, "G1002 二等座 有", "硬卧")
	AssertTrue(t, 2 > 1)
	AssertFalse(t, 1 == 2)
	AssertLen(t, []string{"a", "b"}, 2)
	AssertLen(t, []int{}, 0)
}

func TestAssertErrorIs(t *testing.T) {
	base := errors.New("base")
	AssertErrorIs(t, fmt.Errorf("wrapped: %w", base), base)
}

func TestTrainRecordString(t *testing.T) {
	rec := TrainRecord{
		TrainNo: "240000G1010A",
		Code:    "G101",
		From:    "AAA",
		To:      "CCC",
		Seats:   map[string]string{"二等座": "有", "硬座": "5"},
	}
	fields := strings.Split(rec.String(), "|")
	AssertLen(t, fields, recordWidth)
	AssertEqual(t, fields[3], "G101")
	AssertEqual(t, fields[4], "AAA")
	AssertEqual(t, fields[29], "5")
	AssertEqual(t, fields[30], "有")

	short := strings.Split(rec.Truncated(10), "|")
	AssertLen(t, short, recordWidth-10)
}
