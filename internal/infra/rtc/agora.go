// Package rtc issues real-time A/V channel credentials.
package rtc

import (
	"errors"
	"fmt"
	"math"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"
)

// AgoraIssuer mints Agora RTC tokens. Every token is bound to uid 0 with the
// publisher role: the channel name (the room uuid) already makes it unique.
type AgoraIssuer struct {
	appID          string
	appCertificate string
}

// NewAgoraIssuer creates an AgoraIssuer. An empty app id is rejected because
// clients could never join a channel with it.
func NewAgoraIssuer(appID, appCertificate string) (*AgoraIssuer, error) {
	if appID == "" {
		return nil, errors.New("agora app id cannot be empty")
	}
	return &AgoraIssuer{appID: appID, appCertificate: appCertificate}, nil
}

// AppID returns the application identifier stored alongside each token.
func (i *AgoraIssuer) AppID() string { return i.appID }

// Issue builds a token for channel valid for the given window, counted from
// the moment of issue.
func (i *AgoraIssuer) Issue(channel string, validity time.Duration) (string, error) {
	if channel == "" {
		return "", errors.New("rtc: channel cannot be empty")
	}
	seconds := int64(validity / time.Second)
	if seconds <= 0 || seconds > math.MaxUint32 {
		return "", fmt.Errorf("rtc: validity %s out of range", validity)
	}
	token, err := rtctokenbuilder.BuildTokenWithUid(i.appID, i.appCertificate, channel, 0, rtctokenbuilder.RolePublisher, uint32(seconds))
	if err != nil {
		return "", fmt.Errorf("rtc: build token for channel %s: %w", channel, err)
	}
	return token, nil
}
