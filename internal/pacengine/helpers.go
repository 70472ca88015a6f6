package pacengine

import (
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	logger "github.com/soulteary/logger-kit"
)

// installHelpers installs the standard PAC helper functions onto vm's
// global object, per spec.md §4.2.
func installHelpers(vm *goja.Runtime) {
	must := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := vm.Set(name, fn); err != nil {
			panic(err)
		}
	}

	must("isPlainHostName", pacIsPlainHostName)
	must("dnsDomainIs", pacDNSDomainIs)
	must("localHostOrDomainIs", pacLocalHostOrDomainIs)
	must("isResolvable", pacIsResolvable)
	must("isInNet", pacIsInNet)
	must("dnsResolve", pacDNSResolve)
	must("myIpAddress", pacMyIPAddress)
	must("dnsDomainLevels", pacDNSDomainLevels)
	must("shExpMatch", pacShExpMatch)
	must("weekdayRange", pacWeekdayRange)
	must("dateRange", pacDateRange)
	must("timeRange", pacTimeRange)
	must("alert", pacAlert)
}

func argString(call goja.FunctionCall, i int) string {
	if i >= len(call.Arguments) {
		return ""
	}
	return call.Arguments[i].String()
}

func pacIsPlainHostName(call goja.FunctionCall) goja.Value {
	host := argString(call, 0)
	return goja.ToValue(!strings.Contains(host, "."))
}

func pacDNSDomainIs(call goja.FunctionCall) goja.Value {
	host := argString(call, 0)
	domain := argString(call, 1)
	return goja.ToValue(strings.HasSuffix(host, domain))
}

func pacLocalHostOrDomainIs(call goja.FunctionCall) goja.Value {
	host := argString(call, 0)
	hostdom := argString(call, 1)
	if host == hostdom {
		return goja.ToValue(true)
	}
	if !strings.Contains(host, ".") {
		return goja.ToValue(strings.HasPrefix(hostdom, host+"."))
	}
	return goja.ToValue(false)
}

func pacIsResolvable(call goja.FunctionCall) goja.Value {
	host := argString(call, 0)
	_, err := net.LookupHost(host)
	return goja.ToValue(err == nil)
}

func pacIsInNet(call goja.FunctionCall) goja.Value {
	ipaddr := argString(call, 0)
	pattern := argString(call, 1)
	mask := argString(call, 2)

	ip := resolveFirstIPv4(ipaddr)
	if ip == nil {
		return goja.ToValue(false)
	}

	patternIP := net.ParseIP(pattern).To4()
	maskIP := net.ParseIP(mask).To4()
	if patternIP == nil || maskIP == nil {
		return goja.ToValue(false)
	}

	netMask := net.IPMask(maskIP)
	return goja.ToValue(ip.Mask(netMask).Equal(patternIP.Mask(netMask)))
}

func pacDNSResolve(call goja.FunctionCall) goja.Value {
	host := argString(call, 0)
	ip := resolveFirstIPv4(host)
	if ip == nil {
		return goja.ToValue("")
	}
	return goja.ToValue(ip.String())
}

func pacMyIPAddress(call goja.FunctionCall) goja.Value {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return goja.ToValue("127.0.0.1")
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return goja.ToValue(v4.String())
		}
	}
	return goja.ToValue("127.0.0.1")
}

func pacDNSDomainLevels(call goja.FunctionCall) goja.Value {
	host := argString(call, 0)
	return goja.ToValue(strings.Count(host, "."))
}

func pacShExpMatch(call goja.FunctionCall) goja.Value {
	str := argString(call, 0)
	shexp := argString(call, 1)
	matched, err := regexp.MatchString("^"+shellExpToRegexp(shexp)+"$", str)
	if err != nil {
		return goja.ToValue(false)
	}
	return goja.ToValue(matched)
}

// shellExpToRegexp translates a shell glob (the form PAC's shExpMatch
// accepts: '*' and '?' wildcards) into an unanchored regexp fragment;
// pacShExpMatch adds the ^...$ anchors.
func shellExpToRegexp(shexp string) string {
	var b strings.Builder
	for _, r := range shexp {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

func pacWeekdayRange(call goja.FunctionCall) goja.Value {
	// weekdayRange(wd1[, wd2[, gmt]]) — simplified: only the single-day
	// form and the two-day range form are supported, both against local
	// time, which is sufficient for the PAC scripts this proxy evaluates.
	days := map[string]time.Weekday{
		"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday,
		"WED": time.Wednesday, "THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
	}
	now := time.Now().Weekday()
	wd1, ok1 := days[strings.ToUpper(argString(call, 0))]
	if !ok1 {
		return goja.ToValue(false)
	}
	if len(call.Arguments) < 2 {
		return goja.ToValue(now == wd1)
	}
	wd2, ok2 := days[strings.ToUpper(argString(call, 1))]
	if !ok2 {
		return goja.ToValue(now == wd1)
	}
	if wd1 <= wd2 {
		return goja.ToValue(now >= wd1 && now <= wd2)
	}
	return goja.ToValue(now >= wd1 || now <= wd2)
}

func pacDateRange(call goja.FunctionCall) goja.Value {
	// dateRange with only a day-of-month argument is the common case in
	// practice; fuller month/year range forms are not evaluated here.
	if len(call.Arguments) == 0 {
		return goja.ToValue(false)
	}
	day, err := strconv.Atoi(argString(call, 0))
	if err != nil {
		return goja.ToValue(false)
	}
	return goja.ToValue(time.Now().Day() == day)
}

func pacTimeRange(call goja.FunctionCall) goja.Value {
	// timeRange(hour1, hour2) — the common two-argument hour-bracket form.
	if len(call.Arguments) < 2 {
		return goja.ToValue(false)
	}
	h1, err1 := strconv.Atoi(argString(call, 0))
	h2, err2 := strconv.Atoi(argString(call, 1))
	if err1 != nil || err2 != nil {
		return goja.ToValue(false)
	}
	hour := time.Now().Hour()
	if h1 <= h2 {
		return goja.ToValue(hour >= h1 && hour < h2)
	}
	return goja.ToValue(hour >= h1 || hour < h2)
}

func pacAlert(call goja.FunctionCall) goja.Value {
	logger.Default().Debug().Str("message", argString(call, 0)).Msg("pac script alert")
	return goja.Undefined()
}

func resolveFirstIPv4(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
