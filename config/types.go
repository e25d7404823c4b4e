package config

// Governance captures the quorum and pass-threshold policy that
// election/verifier.Verifier.GetElectionSummary judges a ballot's turnout
// and leading candidate's share against.
type Governance struct {
	QuorumBPS        uint32
	PassThresholdBPS uint32
	VotingPeriodSecs uint64
}

// Mempool carries a byte cap that ValidateConfig requires to be positive.
// Nothing else in the daemon reads it; submissions are not buffered.
type Mempool struct {
	MaxBytes int64
}

// Global bundles the runtime policy values enforced by ValidateConfig.
type Global struct {
	Governance Governance
	Mempool    Mempool
}
