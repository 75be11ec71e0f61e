package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from JSON number or numeric string, since Gamma sends
// volume as a string on some endpoints and a number on others.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	Active          flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed          flexBool  `json:"closed"`
	Archived        flexBool  `json:"archived"`
	AcceptingOrders flexBool  `json:"acceptingOrders"`
	EndDate         string    `json:"endDate"`
	Outcomes        string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices   string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	Volume          flexFloat `json:"volume"`
	Volume24h       flexFloat `json:"volume24hr"`
	Liquidity       flexFloat `json:"liquidity"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. Missing or
// unparseable optional fields (end date, outcome prices) convert to nil
// pointers rather than errors.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:              m.ID,
		Question:        m.Question,
		Slug:            m.Slug,
		Description:     m.Description,
		Active:          bool(m.Active),
		Closed:          bool(m.Closed),
		Archived:        bool(m.Archived),
		AcceptingOrders: bool(m.AcceptingOrders),
		Volume:          float64(m.Volume),
		Volume24h:       float64(m.Volume24h),
		Liquidity:       float64(m.Liquidity),
		FetchedAt:       time.Now().UTC(),
	}

	if m.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			dm.EndDate = &t
		}
	}

	// outcomePrices is a JSON array encoded as a string; the first entry is
	// the YES price.
	if m.OutcomePrices != "" {
		var prices []string
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil && len(prices) > 0 {
			if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
				dm.CurrentPrice = &p
			}
		}
	}

	return dm
}
