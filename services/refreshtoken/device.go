package refreshtoken

import (
	"github.com/mileusna/useragent"
)

type Device struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Type    string `json:"type"`
}

// ParseDevice summarises a User-Agent header for the session list.
func ParseDevice(userAgent string) Device {
	if userAgent == "" {
		return Device{Browser: "Unknown Browser", OS: "Unknown OS", Type: "Unknown"}
	}

	ua := useragent.Parse(userAgent)

	deviceType := "Desktop"
	switch {
	case ua.Bot:
		deviceType = "Bot"
	case ua.Tablet:
		deviceType = "Tablet"
	case ua.Mobile:
		deviceType = "Mobile"
	}

	browser := "Unknown Browser"
	if ua.Name != "" {
		browser = ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
	}

	os := "Unknown OS"
	if ua.OS != "" {
		os = ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
	}

	return Device{Browser: browser, OS: os, Type: deviceType}
}

func (d Device) String() string {
	return d.Browser + " on " + d.OS + " (" + d.Type + ")"
}
