package command

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Builtins returns the optional command set an application usually
// registers after login.
func Builtins() []Command {
	return []Command{
		Message{},
		MessageAck{},
		MessageHistory{},
		AddressBook{},
		Favorites{},
		AddFavorite{},
		RemoveFavorite{},
		Presence{},
	}
}

// Message sends an instant message; msgId is generated per render.
type Message struct {
	NewID func() string
}

func (Message) Name() string     { return "message" }
func (Message) Events() []string { return []string{"message"} }

func (m Message) Render(p Params) (string, error) {
	id := p.Get("messageId")
	if id == "" {
		newID := m.NewID
		if newID == nil {
			newID = NewMessageID
		}
		id = newID()
	}
	return fmt.Sprintf(`%s<message to="%s" msgId="%s" ext="%s">%s</message>`,
		XMLDeclaration, EscapeXML(p.Get("userId")), EscapeXML(id), EscapeXML(p.Get("ext")), EscapeXML(p.Get("text"))), nil
}

// NewMessageID returns a decimal id derived from a random UUID.
func NewMessageID() string {
	id := uuid.New()
	return strconv.FormatUint(uint64(binary.BigEndian.Uint32(id[:4])), 10)
}

type MessageAck struct{}

func (MessageAck) Name() string     { return "messageAck" }
func (MessageAck) Events() []string { return []string{"messageAck"} }

func (MessageAck) Render(p Params) (string, error) {
	return fmt.Sprintf(`%s<messageAck from="%s" msgId="%s" reqId="%s"></messageAck>`,
		XMLDeclaration, EscapeXML(p.Get("userId")), EscapeXML(p.Get("msgId")), EscapeXML(p.Get("reqId"))), nil
}

// MessageHistory requests messages newer than "timestamp". Recognized date
// forms are sent as unix seconds; anything else goes out verbatim.
type MessageHistory struct{}

func (MessageHistory) Name() string { return "messageHist" }

func (MessageHistory) Events() []string {
	return []string{"getImHistoryResponse", "messageHist"}
}

func (MessageHistory) Render(p Params) (string, error) {
	return fmt.Sprintf(`%s<getImHistory timestamp="%s"></getImHistory>`,
		XMLDeclaration, EscapeXML(UnixTimestamp(p.Get("timestamp")))), nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
}

// UnixTimestamp converts raw to unix seconds, falling back to raw unchanged.
func UnixTimestamp(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return strconv.FormatInt(t.Unix(), 10)
		}
	}
	return raw
}

type AddressBook struct{}

func (AddressBook) Name() string     { return "ablist" }
func (AddressBook) Events() []string { return []string{"ablist"} }

func (AddressBook) Render(p Params) (string, error) {
	index := p.Get("index")
	if index == "" {
		index = "0"
	}
	if _, err := strconv.Atoi(index); err != nil {
		return "", fmt.Errorf("command: ablist index %q: %w", index, err)
	}
	return fmt.Sprintf(`%s<iq type="get" id="addressbook" index="%s"></iq>`, XMLDeclaration, index), nil
}

type Favorites struct{}

func (Favorites) Name() string     { return "contact" }
func (Favorites) Events() []string { return []string{"contact"} }

func (Favorites) Render(Params) (string, error) {
	return XMLDeclaration + `<iq type="get" id="roster"></iq>`, nil
}

type AddFavorite struct{}

func (AddFavorite) Name() string     { return "addContact" }
func (AddFavorite) Events() []string { return nil }

func (AddFavorite) Render(p Params) (string, error) {
	return fmt.Sprintf(`%s<iq type="set" id="buddy" jid="%s"></iq>`, XMLDeclaration, EscapeXML(p.Get("userId"))), nil
}

type RemoveFavorite struct{}

func (RemoveFavorite) Name() string     { return "removeContact" }
func (RemoveFavorite) Events() []string { return []string{"removeContact"} }

func (RemoveFavorite) Render(p Params) (string, error) {
	return fmt.Sprintf(`%s<iq type="remove" id="buddy" jid="%s"></iq>`, XMLDeclaration, EscapeXML(p.Get("userId"))), nil
}

// Presence sets status and note. A missing note clears it server side with
// an empty element; an empty note sends no element at all.
type Presence struct{}

func (Presence) Name() string     { return "presence" }
func (Presence) Events() []string { return []string{"presence"} }

func (Presence) Render(p Params) (string, error) {
	note, ok := p["note"]
	switch {
	case !ok:
		note = "<presenceNote/>"
	case note == "":
	default:
		note = "<presenceNote>" + EscapeXML(note) + "</presenceNote>"
	}
	return fmt.Sprintf(`%s<presence status="%s">%s</presence>`, XMLDeclaration, EscapeXML(p.Get("status")), note), nil
}
