package faucet

import (
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/freemoonfaucet/gas-faucet/internal/utils"
)

// ClaimIdentity is the deduplication key for the claim ledger: the
// requesting network origin paired with the target account. Immutable
// once constructed.
type ClaimIdentity struct {
	RequesterAddress string
	TargetAccount    string
}

// ExtractIdentity derives the claim identity from an inbound request.
// The target account must be a syntactically valid hex address and is
// normalized to lowercase. The requester address is taken from the most
// specific X-Forwarded-For entry, falling back to the connection peer.
//
// An empty requester address is kept as its own identity bucket, which
// is effectively un-rate-limited. Known weakness; deployments are
// expected to sit behind a proxy that sets the forwarding header.
func ExtractIdentity(walletAddress string, forwardedFor string, remoteAddr string) (ClaimIdentity, error) {
	if !common.IsHexAddress(walletAddress) {
		return ClaimIdentity{}, newClaimError(KindInvalidAddress, msgInvalidAddress, nil)
	}
	if utils.AreAddressesEqual(walletAddress, utils.NullEthereumAddressHex) {
		// Syntactically fine, but nobody controls the zero address.
		return ClaimIdentity{}, newClaimError(KindInvalidAddress, msgInvalidAddress, nil)
	}

	return ClaimIdentity{
		RequesterAddress: requesterAddress(forwardedFor, remoteAddr),
		TargetAccount:    strings.ToLower(walletAddress),
	}, nil
}

func requesterAddress(forwardedFor string, remoteAddr string) string {
	if forwardedFor != "" {
		// The first entry is the original client; later entries are
		// proxies that relayed the request.
		parts := strings.Split(forwardedFor, ",")
		first := strings.TrimSpace(parts[0])
		if first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
