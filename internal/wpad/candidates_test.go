package wpad

import (
	"reflect"
	"testing"

	"github.com/soulteary/wpadproxy/internal/suffix"
)

func TestComputeCandidates_ConfigURLWins(t *testing.T) {
	got := ComputeCandidates("http://configured/wpad.dat", []string{"http://dhcp/wpad.dat"}, []string{"example.com"}, suffix.NewResolver())
	want := []string{"http://configured/wpad.dat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeCandidates() = %v, want %v", got, want)
	}
}

func TestComputeCandidates_DHCPWinsOverDNS(t *testing.T) {
	got := ComputeCandidates("", []string{"http://dhcp.example/wpad.dat"}, []string{"example.com"}, suffix.NewResolver())
	want := []string{"http://dhcp.example/wpad.dat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeCandidates() = %v, want %v", got, want)
	}
}

func TestComputeCandidates_DNSSearchDomainSingleLevel(t *testing.T) {
	got := ComputeCandidates("", nil, []string{"example.com"}, suffix.NewResolver())
	want := []string{"http://wpad.example.com/wpad.dat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeCandidates() = %v, want %v", got, want)
	}
}

func TestComputeCandidates_DNSSearchDomainPublicSuffixBoundary(t *testing.T) {
	// This is end-to-end scenario 4 from spec.md §8: the candidate list
	// must include http://wpad.sub.example.co.uk/wpad.dat and
	// http://wpad.example.co.uk/wpad.dat but never http://wpad.co.uk/wpad.dat.
	got := ComputeCandidates("", nil, []string{"sub.example.co.uk"}, suffix.NewResolver())
	want := []string{
		"http://wpad.sub.example.co.uk/wpad.dat",
		"http://wpad.example.co.uk/wpad.dat",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeCandidates() = %v, want %v", got, want)
	}
	for _, c := range got {
		if c == "http://wpad.co.uk/wpad.dat" {
			t.Error("candidate list must never contain a bare public-suffix WPAD URL")
		}
	}
}

func TestComputeCandidates_MultiLevelSubdomainDeepestFirst(t *testing.T) {
	got := ComputeCandidates("", nil, []string{"a.b.example.com"}, suffix.NewResolver())
	want := []string{
		"http://wpad.a.b.example.com/wpad.dat",
		"http://wpad.b.example.com/wpad.dat",
		"http://wpad.example.com/wpad.dat",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeCandidates() = %v, want %v", got, want)
	}
}

func TestComputeCandidates_NoCandidatesWhenEverythingEmpty(t *testing.T) {
	got := ComputeCandidates("", nil, nil, suffix.NewResolver())
	if len(got) != 0 {
		t.Errorf("ComputeCandidates() = %v, want empty", got)
	}
}
