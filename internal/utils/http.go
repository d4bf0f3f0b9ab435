package utils

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/realclientip/realclientip-go"
)

type HttpRes struct {
	Message    string `json:"message,omitempty" example:"accepted"`
	StatusCode int    `json:"statusCode,omitempty" example:"202"`
}

func HttpResAccepted() HttpRes {
	return HttpRes{
		Message:    "accepted",
		StatusCode: http.StatusAccepted,
	}
}

func HttpResError(errMsg string, statusCode int) (int, HttpRes) {
	return statusCode, HttpRes{
		Message:    errMsg,
		StatusCode: statusCode,
	}
}

// ExtractOrigin reduces a URL to scheme://host. Values that do not parse as
// absolute URLs are returned unchanged.
func ExtractOrigin(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

type RealIPExtractor struct {
	strategy realclientip.RightmostTrustedRangeStrategy
}

// NewRealIPExtractor creates a new RealIPExtractor with the given trusted ranges.
func NewRealIPExtractor(trustedRanges []string) (*RealIPExtractor, error) {
	ipNets, err := realclientip.AddressesAndRangesToIPNets(trustedRanges...)
	if err != nil {
		return nil, err
	}

	strategy, err := realclientip.NewRightmostTrustedRangeStrategy("X-Forwarded-For", ipNets)
	if err != nil {
		return nil, err
	}

	return &RealIPExtractor{
		strategy: strategy,
	}, nil
}

var remoteAddrStrategy = realclientip.RemoteAddrStrategy{}

// RemoteAddr returns the peer address of the request without its port.
func RemoteAddr(request *http.Request) string {
	return remoteAddrStrategy.ClientIP(nil, request.RemoteAddr)
}

func (e *RealIPExtractor) Extract(request *http.Request) string {
	headers := request.Header.Clone()

	newXForwardedFor := []string{}
	oldXForwardedFor := headers.Get("X-Forwarded-For")

	if oldXForwardedFor != "" {
		newXForwardedFor = append(newXForwardedFor, oldXForwardedFor)
	}

	remoteAddr := RemoteAddr(request)
	if remoteAddr == "" || len(newXForwardedFor) == 0 {
		return remoteAddr
	}

	newXForwardedFor = append(newXForwardedFor, remoteAddr)
	headers.Set("X-Forwarded-For", strings.Join(newXForwardedFor, ", "))

	// RightmostTrustedRangeStrategy ignore the second parameter
	rightmostTrusted := e.strategy.ClientIP(headers, "")
	if rightmostTrusted == "" {
		return remoteAddr
	}
	return rightmostTrusted
}
