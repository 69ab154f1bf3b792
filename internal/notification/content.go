package notification

const codeSeparator = "\n────────────\n"

// BuildNotification lays out the push: the code above the original text when
// there is one, then the sending device.
func BuildNotification(title, code, content, device string) Notification {
	body := content
	if code != "" {
		body = code + codeSeparator + content
	}
	if device != "" {
		body += "\n\n📱 From: " + device
	}

	return Notification{
		Title: title,
		Body:  body,
	}
}

// MaskTarget hides a push key for logs and responses.
func MaskTarget(target string) string {
	runes := []rune(target)
	if len(runes) <= 8 {
		return "***"
	}
	return string(runes[:4]) + "..." + string(runes[len(runes)-4:])
}
