package wpad

import "strings"

// suffixSplitter is the subset of suffix.Resolver that candidate
// computation depends on.
type suffixSplitter interface {
	Split(fqdn string) (subdomain string, registrable string, err error)
}

// ComputeCandidates derives the ordered WPAD candidate URL list per
// spec.md §4.5:
//  1. an explicit config-file URL, if present, as the sole candidate;
//  2. otherwise any DHCP option-252 URLs;
//  3. otherwise, for each active search domain, candidates walking from
//     the deepest subdomain inward to the registrable-domain boundary,
//     never emitting a bare public-suffix candidate.
func ComputeCandidates(configURL string, dhcpURLs []string, searchDomains []string, splitter suffixSplitter) []string {
	if configURL != "" {
		return []string{configURL}
	}
	if len(dhcpURLs) > 0 {
		return dhcpURLs
	}

	var candidates []string
	for _, domain := range searchDomains {
		subdomain, registrable, err := splitter.Split(domain)
		if err != nil {
			continue
		}

		if subdomain != "" {
			labels := strings.Split(subdomain, ".")
			for i := range labels {
				remainder := strings.Join(labels[i:], ".")
				candidates = append(candidates, "http://wpad."+remainder+"."+registrable+"/wpad.dat")
			}
		}
		candidates = append(candidates, "http://wpad."+registrable+"/wpad.dat")
	}
	return candidates
}
