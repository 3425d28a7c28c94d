package core

// Greeting is the /start reply.
const Greeting = "Hi! I'm a cognitive bias analyzer bot. " +
	"Send me any text in a private chat and I'll analyze it for potential biases and logical fallacies.\n\n" +
	"In groups, use /analyze <text>, or reply to a message with /analyze."

// UsageHint is sent when /analyze has nothing to analyze.
const UsageHint = "Please provide text to analyze: /analyze <text>, or reply to a message with /analyze."

const apologyFormat = "Sorry, I encountered an error while analyzing the message: %s"
