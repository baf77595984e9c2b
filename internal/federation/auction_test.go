package federation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func TestAuction_PicksLowestScore(t *testing.T) {
	a := federation.NewAuction("job-1")
	require.True(t, a.AddBid(wire.JobBid{JobID: "job-1", RouterID: "r1", PriceMsat: 1000, EtaMs: 40}, 5000, 0))
	require.True(t, a.AddBid(wire.JobBid{JobID: "job-1", RouterID: "r2", PriceMsat: 900, EtaMs: 500}, 5000, 0))
	a.Close()

	winner, ok := a.Winner(federation.LambdaDefault)
	require.True(t, ok)
	// r1: 1000 + 0.001*40 = 1000.04; r2: 900 + 0.001*500 = 900.5 -> r2 wins
	require.Equal(t, "r2", winner.RouterID)
}

func TestAuction_TieBreaksByTrustThenRouterID(t *testing.T) {
	a := federation.NewAuction("job-1")
	a.AddBid(wire.JobBid{JobID: "job-1", RouterID: "b", PriceMsat: 1000, EtaMs: 0}, 5000, 0.5)
	a.AddBid(wire.JobBid{JobID: "job-1", RouterID: "a", PriceMsat: 1000, EtaMs: 0}, 5000, 0.9)
	a.Close()

	winner, ok := a.Winner(federation.LambdaDefault)
	require.True(t, ok)
	require.Equal(t, "a", winner.RouterID) // higher trust wins the tie
}

func TestAuction_NoBidsReturnsFalse(t *testing.T) {
	a := federation.NewAuction("job-1")
	a.Close()
	_, ok := a.Winner(federation.LambdaDefault)
	require.False(t, ok)
}

func TestAuction_RejectsBidAboveMaxPrice(t *testing.T) {
	a := federation.NewAuction("job-1")
	require.False(t, a.AddBid(wire.JobBid{JobID: "job-1", RouterID: "r1", PriceMsat: 6000}, 5000, 0))
}

func TestAuction_RejectsAfterClose(t *testing.T) {
	a := federation.NewAuction("job-1")
	a.Close()
	require.False(t, a.AddBid(wire.JobBid{JobID: "job-1", RouterID: "r1", PriceMsat: 100}, 5000, 0))
}

func TestBuildAward_RespectsMaxPriceAndExpiry(t *testing.T) {
	winner := wire.JobBid{JobID: "job-1", RouterID: "r2", PriceMsat: 900}
	award := federation.BuildAward(winner, 5000, 1000)
	require.LessOrEqual(t, award.AcceptedPriceMsat, int64(5000))
	require.Greater(t, award.AwardExpiryMs, int64(1000))
}
