// useragent строит человекочитаемую метку устройства из заголовка User-Agent.
// Метка используется только для отображения в списке сессий и ни на что
// не влияет в принятии решений, поэтому распознавание нарочно грубое.
package useragent

import "strings"

const unknownDevice = "Unknown device"

// browsers — порядок важен: более специфичные маркеры раньше общих
// (Edge и Opera содержат "Chrome" в UA, Chrome содержит "Safari").
var browsers = []struct{ marker, name string }{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
}

var systems = []struct{ marker, name string }{
	{"Windows NT", "Windows"},
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Mac OS X", "macOS"},
	{"Linux", "Linux"},
}

// DeviceLabel возвращает метку вида "Chrome on Windows".
// Для пустого или неузнанного User-Agent — "Unknown device".
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}

	browser := ""
	for _, b := range browsers {
		if strings.Contains(userAgent, b.marker) {
			browser = b.name
			break
		}
	}

	os := ""
	for _, s := range systems {
		if strings.Contains(userAgent, s.marker) {
			os = s.name
			break
		}
	}

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return unknownDevice
	}
}
