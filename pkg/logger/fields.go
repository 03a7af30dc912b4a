package logger

// Field constructors shared by the console packages.

// PlatformField returns a LogField naming the chat platform (discord, slack, telegram).
func PlatformField(platform string) LogField {
	return StringField("platform", platform)
}

// ChannelField returns a LogField for a chat channel ID.
func ChannelField(channelID string) LogField {
	return StringField("channel_id", channelID)
}

// AuthorField returns a LogField for a chat author ID.
func AuthorField(authorID string) LogField {
	return StringField("author_id", authorID)
}

// MessageField returns a LogField for a chat message ID.
func MessageField(messageID string) LogField {
	return StringField("message_id", messageID)
}

// ModeField returns a LogField for an execution mode (eval, calc, sh, repl).
func ModeField(mode string) LogField {
	return StringField("mode", mode)
}
