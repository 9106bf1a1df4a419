package types

import (
	"regexp"
	"strings"
)

// BedConfig is a user-facing configuration entry. A bed may back one
// or two linked BLE controllers; StayConnected controls whether the
// command pipeline keeps a persistent connection or disconnects after
// an idle period (see pipeline.Command.StayConnected).
type BedConfig struct {
	FriendlyName   string
	Name           string
	Aliases        string
	ExtraIdentifiers []string
	StayConnected  bool
}

var hex12Pattern = regexp.MustCompile(`[0-9a-fA-F]{12}`)

// StableID derives the bed's logical identity: a 12-hex MAC extracted
// from Name or Aliases if one is present (either a contiguous 12-hex
// run or a separated form such as aa:bb:cc:dd:ee:ff, whose hex digits
// number exactly 12), else the lowercased Name.
// This identity — not the runtime BLE integer address — is the key
// used for external entity discovery topics, so failing over between
// two linked controllers never creates duplicate entities.
func (b *BedConfig) StableID() string {
	for _, candidate := range append([]string{b.Name}, splitAliases(b.Aliases)...) {
		if mac := firstHex12(candidate); mac != "" {
			return strings.ToLower(mac)
		}
		hexOnly := strings.Map(func(r rune) rune {
			if strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return r
			}
			return -1
		}, candidate)
		if len(hexOnly) == 12 {
			return strings.ToLower(hexOnly)
		}
	}
	return strings.ToLower(strings.TrimSpace(b.Name))
}

// firstHex12 returns the first 12-hex-character substring found
// anywhere in s, or "" if none exists.
func firstHex12(s string) string {
	return hex12Pattern.FindString(s)
}

// splitAliases splits a free-form comma/space separated alias list.
func splitAliases(aliases string) []string {
	if aliases == "" {
		return nil
	}
	fields := strings.FieldsFunc(aliases, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Identifiers returns every token (Name, aliases, extra identifiers)
// this bed should be matched against, already split but not yet
// normalized — normalization is matching.Normalize's job.
func (b *BedConfig) Identifiers() []string {
	ids := make([]string, 0, 2+len(b.ExtraIdentifiers))
	if b.Name != "" {
		ids = append(ids, b.Name)
	}
	ids = append(ids, splitAliases(b.Aliases)...)
	ids = append(ids, b.ExtraIdentifiers...)
	return ids
}
