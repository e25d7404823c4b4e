package config

import "fmt"

// Policy validates and returns the governance policy this config carries.
// The caller (cmd/electiond) passes the result to
// election/verifier.Verifier.GetElectionSummary, which is what actually
// judges a ballot's turnout against QuorumBPS and its leading candidate's
// share against PassThresholdBPS.
func (g Global) Policy() (Governance, error) {
	if g.Governance.QuorumBPS == 0 {
		return Governance{}, fmt.Errorf("global.governance: quorum_bps must be set")
	}
	if g.Governance.PassThresholdBPS > 10_000 {
		return Governance{}, fmt.Errorf("global.governance: pass_threshold_bps exceeds 10000")
	}
	return g.Governance, nil
}
