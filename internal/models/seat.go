package models

import (
	"strconv"
	"strings"
)

// SeatCategory is one of the fixed seat classes reported by the ticket query
type SeatCategory string

// Seat categories in the order the upstream record lists them
const (
	SeatPremiumFirst      SeatCategory = "优选一等座"
	SeatDeluxeSoftSleeper SeatCategory = "高级软卧"
	SeatOther             SeatCategory = "其他"
	SeatSoftSleeper       SeatCategory = "软卧"
	SeatSoftSeat          SeatCategory = "软座"
	SeatPremier           SeatCategory = "特等座"
	SeatStanding          SeatCategory = "无座"
	SeatYB                SeatCategory = "YB"
	SeatHardSleeper       SeatCategory = "硬卧"
	SeatHardSeat          SeatCategory = "硬座"
	SeatSecondClass       SeatCategory = "二等座"
	SeatFirstClass        SeatCategory = "一等座"
	SeatBusiness          SeatCategory = "商务座"
	SeatSRRB              SeatCategory = "SRRB"
)

// SeatCategories lists every category in record order. Summaries follow this order.
var SeatCategories = []SeatCategory{
	SeatPremiumFirst,
	SeatDeluxeSoftSleeper,
	SeatOther,
	SeatSoftSleeper,
	SeatSoftSeat,
	SeatPremier,
	SeatStanding,
	SeatYB,
	SeatHardSleeper,
	SeatHardSeat,
	SeatSecondClass,
	SeatFirstClass,
	SeatBusiness,
	SeatSRRB,
}

// IsValid reports whether c is one of the enumerated categories
func (c SeatCategory) IsValid() bool {
	for _, known := range SeatCategories {
		if c == known {
			return true
		}
	}
	return false
}

// TokenKind classifies a raw seat availability token
type TokenKind int

const (
	// TokenEmpty is an empty field (category not offered)
	TokenEmpty TokenKind = iota
	// TokenNone is "无": sold out
	TokenNone
	// TokenNotSold is "--": category not sold on this segment
	TokenNotSold
	// TokenPresale is "*": not yet on sale
	TokenPresale
	// TokenUnlimited is "有": plenty available
	TokenUnlimited
	// TokenCount is a numeric remaining count
	TokenCount
	// TokenUnknown is anything else that does not parse as a count
	TokenUnknown
)

// Token is a decoded seat availability token
type Token struct {
	Kind  TokenKind
	Count int
	Raw   string
}

// ParseToken decodes one raw availability string
func ParseToken(raw string) Token {
	s := strings.TrimSpace(raw)
	switch s {
	case "":
		return Token{Kind: TokenEmpty, Raw: raw}
	case "无":
		return Token{Kind: TokenNone, Raw: raw}
	case "--":
		return Token{Kind: TokenNotSold, Raw: raw}
	case "*":
		return Token{Kind: TokenPresale, Raw: raw}
	case "有":
		return Token{Kind: TokenUnlimited, Raw: raw}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Token{Kind: TokenUnknown, Raw: raw}
	}
	return Token{Kind: TokenCount, Count: n, Raw: raw}
}

// Available reports whether the token means seats can be bought.
// Presale ("*") is deliberately unavailable.
func (t Token) Available() bool {
	switch t.Kind {
	case TokenUnlimited:
		return true
	case TokenCount:
		return t.Count > 0
	case TokenEmpty, TokenNone, TokenNotSold, TokenPresale, TokenUnknown:
		return false
	}
	return false
}

// String returns the raw token text
func (t Token) String() string {
	return strings.TrimSpace(t.Raw)
}

// AvailabilityCap is the total at which remaining seats are shown as "≥20"
const AvailabilityCap = 20

// Availability is the result of evaluating a train's seat tokens
type Availability struct {
	Remain    bool
	Total     int
	Unlimited bool
	Summary   string
}

// TotalLabel renders Total, capped as "≥20"
func (a Availability) TotalLabel() string {
	if a.Unlimited || a.Total >= AvailabilityCap {
		return "≥20"
	}
	return strconv.Itoa(a.Total)
}

// SeatSet is an optional allow-list of categories. A nil set allows all.
type SeatSet map[SeatCategory]struct{}

// NewSeatSet builds a set from a list; an empty list yields nil (no restriction)
func NewSeatSet(categories []SeatCategory) SeatSet {
	if len(categories) == 0 {
		return nil
	}
	set := make(SeatSet, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}

// Allows reports whether c passes the allow-list
func (s SeatSet) Allows(c SeatCategory) bool {
	if s == nil {
		return true
	}
	_, ok := s[c]
	return ok
}

// Evaluate decides whether a train has remaining tickets in the allowed categories
func Evaluate(train *ParsedTrain, allowed SeatSet) Availability {
	var (
		parts []string
		res   Availability
	)
	for _, category := range SeatCategories {
		if !allowed.Allows(category) {
			continue
		}
		tok := train.Seats[category]
		if !tok.Available() {
			continue
		}
		res.Remain = true
		parts = append(parts, string(category)+" "+tok.String())
		switch tok.Kind {
		case TokenUnlimited:
			res.Unlimited = true
		case TokenCount:
			res.Total += tok.Count
		}
	}
	res.Summary = strings.Join(parts, " / ")
	return res
}
