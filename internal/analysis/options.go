package analysis

import "strings"

// VirtualAdvisor is the placeholder advisor excluded from advisor views by
// default.
const VirtualAdvisor = "正行深圳虚拟理财师"

type Options struct {
	TierRank         TierRank
	ExcludedAdvisors []string
}

func DefaultOptions() Options {
	return Options{
		TierRank:         NewTierRank(DefaultTierOrder),
		ExcludedAdvisors: []string{VirtualAdvisor},
	}
}

func (o Options) excluded(name string) bool {
	name = strings.TrimSpace(name)
	for _, ex := range o.ExcludedAdvisors {
		if strings.TrimSpace(ex) == name {
			return true
		}
	}
	return false
}
