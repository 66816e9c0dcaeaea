package agora

import (
	"errors"
	"strconv"

	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/token"
)

var errInvalidJSON = errors.New("response body is not valid JSON")

type recordingRequest struct {
	Cname         string `json:"cname"`
	UID           string `json:"uid"`
	ClientRequest any    `json:"clientRequest"`
}

type recordingClientRequest struct {
	Token               string              `json:"token"`
	RecordingConfig     recordingConfig     `json:"recordingConfig"`
	StorageConfig       storageConfig       `json:"storageConfig"`
	RecordingFileConfig recordingFileConfig `json:"recordingFileConfig"`
}

type recordingConfig struct {
	MaxIdleTime int `json:"maxIdleTime,omitempty"`
}

type storageConfig struct {
	SecretKey      string   `json:"secretKey"`
	Vendor         int      `json:"vendor"`
	Region         int      `json:"region"`
	Bucket         string   `json:"bucket"`
	AccessKey      string   `json:"accessKey"`
	FileNamePrefix []string `json:"fileNamePrefix,omitempty"`
}

type recordingFileConfig struct {
	AVFileType []string `json:"avFileType"`
}

type transcriptionStartRequest struct {
	Languages   []string  `json:"languages"`
	MaxIdleTime int       `json:"maxIdleTime"`
	RTCConfig   rtcConfig `json:"rtcConfig"`
}

type rtcConfig struct {
	ChannelName string `json:"channelName"`
	SubBotUID   string `json:"subBotUid"`
	SubBotToken string `json:"subBotToken"`
	PubBotUID   string `json:"pubBotUid"`
	PubBotToken string `json:"pubBotToken"`
}

func (c *Client) recordingStartBody(res provider.Resource, tok token.Token) recordingRequest {
	rc := c.cfg.Recording
	prefix := append(append([]string(nil), rc.FileNamePrefix...), strconv.FormatInt(c.now().UnixMilli(), 10))
	return recordingRequest{
		Cname: res.Channel,
		UID:   res.UID,
		ClientRequest: recordingClientRequest{
			Token:           tok.Value,
			RecordingConfig: recordingConfig{MaxIdleTime: rc.MaxIdleTime},
			StorageConfig: storageConfig{
				SecretKey:      rc.Storage.SecretKey,
				Vendor:         rc.Storage.Vendor,
				Region:         rc.Storage.Region,
				Bucket:         rc.Storage.Bucket,
				AccessKey:      rc.Storage.AccessKey,
				FileNamePrefix: prefix,
			},
			RecordingFileConfig: recordingFileConfig{AVFileType: rc.AVFileTypes},
		},
	}
}

func (c *Client) transcriptionStartBody(res provider.Resource, sub, pub token.Token) transcriptionStartRequest {
	return transcriptionStartRequest{
		Languages:   c.cfg.Transcription.Languages,
		MaxIdleTime: c.cfg.Transcription.MaxIdleTime,
		RTCConfig: rtcConfig{
			ChannelName: res.Channel,
			SubBotUID:   sub.UID,
			SubBotToken: sub.Value,
			PubBotUID:   pub.UID,
			PubBotToken: pub.Value,
		},
	}
}
