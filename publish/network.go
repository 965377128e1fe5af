package publish

// Names follow what ethers reports from provider.getNetwork().
var networkNames = map[uint64]string{
	1:        "mainnet",
	10:       "optimism",
	56:       "bnb",
	100:      "xdai",
	137:      "matic",
	8453:     "base",
	17000:    "holesky",
	31337:    "hardhat",
	42161:    "arbitrum",
	80002:    "matic-amoy",
	84532:    "base-sepolia",
	421614:   "arbitrum-sepolia",
	11155111: "sepolia",
	11155420: "optimism-sepolia",
}

func NetworkName(chainID uint64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return "unknown"
}
