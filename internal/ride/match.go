package ride

import (
    "sort"
    "strings"

    "github.com/iliyamo/ride-share/internal/model"
)

// Route is a rider's desired origin and destination, as free text.
type Route struct {
    Start string
    End   string
}

// Scorer rates how well a ride's route matches a rider's desired route
// as a percentage from 0 to 100.  It exists as an interface so a real
// geospatial scorer can replace the string-equality stub without
// touching the lifecycle manager or handlers.
type Scorer interface {
    Score(r *model.Ride, route Route) int
}

// ExactMatchScorer scores each endpoint by case-insensitive string
// equality: a matching start contributes 50 and a matching end
// contributes 50, so the result is always 0, 50 or 100.  This is a
// deliberately coarse placeholder; no fuzzy matching or distance
// calculation is performed.
type ExactMatchScorer struct{}

// Score implements Scorer.
func (ExactMatchScorer) Score(r *model.Ride, route Route) int {
    score := 0
    if strings.EqualFold(r.StartLocation, route.Start) {
        score += 50
    }
    if strings.EqualFold(r.EndLocation, route.End) {
        score += 50
    }
    return score
}

// Match pairs a ride with its computed match percentage for a route.
type Match struct {
    Ride            *model.Ride `json:"ride"`
    MatchPercentage int         `json:"match_percentage"`
}

// Rank scores every ride against the route and returns them ordered by
// descending match percentage.  The sort is stable so that ties keep
// the order of the input slice (typically the store's query order).
func Rank(rides []*model.Ride, route Route, scorer Scorer) []Match {
    matches := make([]Match, 0, len(rides))
    for _, r := range rides {
        matches = append(matches, Match{Ride: r, MatchPercentage: scorer.Score(r, route)})
    }
    sort.SliceStable(matches, func(i, j int) bool {
        return matches[i].MatchPercentage > matches[j].MatchPercentage
    })
    return matches
}
