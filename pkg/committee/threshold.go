package committee

// Fixed protocol policy: 70% of key shares sign, 90% must complete DKG.
const (
	signingRatioNum = 7
	dkgRatioNum     = 9
	ratioDen        = 10
)

// ThresholdConfig is derived from the committee size and is never set
// independently.
type ThresholdConfig struct {
	SigningThreshold uint32
	DkgThreshold     uint32
	TotalSigners     uint32
	TotalKeys        uint32
}

// NewThresholdConfig derives the signing and DKG thresholds from the number
// of key shares. SigningThreshold <= DkgThreshold <= TotalKeys always holds.
func NewThresholdConfig(totalSigners, totalKeys uint32) ThresholdConfig {
	keys := uint64(totalKeys)
	return ThresholdConfig{
		SigningThreshold: uint32(keys * signingRatioNum / ratioDen),
		DkgThreshold:     uint32(keys * dkgRatioNum / ratioDen),
		TotalSigners:     totalSigners,
		TotalKeys:        totalKeys,
	}
}
