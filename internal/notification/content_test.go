package notification

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildNotification(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		content string
		device  string
		body    string
	}{
		{
			name:    "with code",
			code:    "4821",
			content: "Your code is 4821",
			device:  "pixel",
			body:    "4821\n────────────\nYour code is 4821\n\n📱 From: pixel",
		},
		{
			name:    "without code",
			content: "Please verify your login",
			device:  "pixel",
			body:    "Please verify your login\n\n📱 From: pixel",
		},
		{
			name:    "without device",
			code:    "1234",
			content: "code 1234",
			body:    "1234\n────────────\ncode 1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := BuildNotification("title", tt.code, tt.content, tt.device)
			assert.Equal(t, "title", n.Title)
			assert.Equal(t, tt.body, n.Body)
		})
	}
}

func TestMaskTarget(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{target: "", want: "***"},
		{target: "short", want: "***"},
		{target: "12345678", want: "***"},
		{target: "123456789", want: "1234...6789"},
		{target: "abcdEFGHijklMNOP", want: "abcd...MNOP"},
		{target: "设备密钥一二三四", want: "***"},
		{target: "设备密钥abc一二三四", want: "设备密钥...一二三四"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := MaskTarget(tt.target)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
