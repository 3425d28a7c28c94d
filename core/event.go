package core

import "strings"

// InboundEvent is one of StartCommand, AnalyzeCommand or PlainMessage.
type InboundEvent interface {
	isInboundEvent()
}

// StartCommand is a /start invocation.
type StartCommand struct{}

// AnalyzeCommand is an /analyze invocation.
type AnalyzeCommand struct {
	// ReplyTo is the replied-to message's text, nil when the command was not
	// sent as a reply.
	ReplyTo *string
	Args    []string
}

// PlainMessage is a non-command text message.
type PlainMessage struct {
	Text    string
	Private bool
}

func (StartCommand) isInboundEvent()   {}
func (AnalyzeCommand) isInboundEvent() {}
func (PlainMessage) isInboundEvent()   {}

// Classify maps an inbound message to the event it triggers. It returns nil
// for unknown commands, for commands addressed to another bot with
// "/command@otherbot", and for plain messages outside private chats, which
// have no handler. An empty botUsername accepts any addressee.
func Classify(msg InboundMessage, botUsername string) InboundEvent {
	cmd, addressee, args, isCmd := parseCommand(msg.Text)
	if !isCmd {
		if !msg.Private {
			return nil
		}
		return PlainMessage{Text: msg.Text, Private: msg.Private}
	}

	if addressee != "" && botUsername != "" && !strings.EqualFold(addressee, botUsername) {
		return nil
	}

	switch cmd {
	case "start":
		return StartCommand{}
	case "analyze":
		return AnalyzeCommand{ReplyTo: msg.ReplyTo, Args: args}
	default:
		return nil
	}
}

// ResolveTarget returns the text an event asks to analyze. The boolean is
// false when there is nothing to analyze.
//
// For AnalyzeCommand the replied-to text wins over the arguments, which are
// otherwise joined with single spaces. PlainMessage yields its text only in
// private chats.
func ResolveTarget(ev InboundEvent) (string, bool) {
	switch ev := ev.(type) {
	case AnalyzeCommand:
		text := strings.Join(ev.Args, " ")
		if ev.ReplyTo != nil {
			text = *ev.ReplyTo
		}
		return text, text != ""
	case PlainMessage:
		if !ev.Private || ev.Text == "" {
			return "", false
		}
		return ev.Text, true
	default:
		return "", false
	}
}

// parseCommand extracts the command name and arguments from a message.
// It handles "/command", "/command args", and "/command@botname args";
// addressee is the botname without "@". isCmd reports whether the text is a
// command at all; a bare "/" is not.
func parseCommand(text string) (cmd, addressee string, args []string, isCmd bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", nil, false
	}

	cmd = fields[0][1:] // strip leading "/"
	if cmd == "" {
		return "", "", nil, false
	}

	if at := strings.Index(cmd, "@"); at != -1 {
		cmd, addressee = cmd[:at], cmd[at+1:]
	}

	if len(fields) > 1 {
		args = fields[1:]
	}
	return strings.ToLower(cmd), addressee, args, true
}
