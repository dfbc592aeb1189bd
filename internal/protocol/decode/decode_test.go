package decode

import (
	"errors"
	"testing"

	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/tree"
	"github.com/danmuck/csta/internal/testutil/testlog"
)

func registry(t *testing.T, cmds ...command.Command) *command.Registry {
	t.Helper()
	r := command.NewRegistry()
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			t.Fatalf("register %s: %v", c.Name(), err)
		}
	}
	return r
}

func expecting(events ...string) command.Command {
	return command.Func{CommandName: "watcher", EventNames: events}
}

func TestDecodeRepeatedChildrenBecomeList(t *testing.T) {
	testlog.Start(t)
	res, err := Decode([]byte(`<a><b x="1">t</b><b x="2">u</b></a>`), registry(t, expecting("a")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Matched() || res.EventName != "a" || res.Command.Name() != "watcher" {
		t.Fatalf("unexpected match: %+v", res)
	}
	v, ok := res.Tree["b"]
	if !ok || v.Kind() != tree.KindList {
		t.Fatalf("b should be a list, got %#v", v)
	}
	list := v.(tree.List)
	if len(list) != 2 {
		t.Fatalf("list len=%d", len(list))
	}
	want := []tree.Record{
		{"x": tree.String("1"), "b": tree.String("t")},
		{"x": tree.String("2"), "b": tree.String("u")},
	}
	for i, rec := range list {
		if len(rec) != 2 || rec["x"] != want[i]["x"] || rec["b"] != want[i]["b"] {
			t.Fatalf("item %d = %#v want %#v", i, rec, want[i])
		}
	}
}

func TestDecodeSingleChildIsRecordNotList(t *testing.T) {
	testlog.Start(t)
	res, err := Decode([]byte(`<a><b x="1">t</b></a>`), registry(t, expecting("a")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v := res.Tree["b"]
	if v == nil || v.Kind() != tree.KindRecord {
		t.Fatalf("single b should be a record, got %#v", v)
	}
	rec := v.(tree.Record)
	if rec["x"] != tree.String("1") || rec["b"] != tree.String("t") {
		t.Fatalf("record=%#v", rec)
	}
}

func TestDecodeUnmatchedRootIsNoMatch(t *testing.T) {
	testlog.Start(t)
	res, err := Decode([]byte(`<unknownTag/>`), registry(t, command.NewLogin()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Matched() || res.Tree != nil {
		t.Fatalf("expected no match, got %+v", res)
	}
	if res.Root != "unknownTag" {
		t.Fatalf("root=%q", res.Root)
	}
}

func TestDecodeUnmatchedStillChecksWellFormedness(t *testing.T) {
	testlog.Start(t)
	_, err := Decode([]byte(`<unknownTag><x></unknownTag>`), registry(t))
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	testlog.Start(t)
	r := registry(t, expecting("a"))
	docs := []string{
		``,
		`<a><b></a>`,
		`<a>`,
		`<a/><a/>`,
		`<a/>trailing`,
		"<a x=\"\xff\"/>",
	}
	for _, doc := range docs {
		if _, err := Decode([]byte(doc), r); !errors.Is(err, ErrMalformedDocument) {
			t.Fatalf("doc %q: expected ErrMalformedDocument, got %v", doc, err)
		}
	}
}

func TestDecodeLoginResponseAttributesAndChildren(t *testing.T) {
	testlog.Start(t)
	doc := `<?xml version="1.0" encoding="utf-8"?>` +
		`<loginResponce userId="43884632217388952" apiversion="3">` +
		`<user name="Alice"/>` +
		`<Code>0</Code>` +
		`</loginResponce>`
	res, err := Decode([]byte(doc), registry(t, command.NewLogin()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.EventName != command.EventLoginResponse {
		t.Fatalf("event=%q", res.EventName)
	}
	if got, _ := res.Tree.String("userId"); got != "43884632217388952" {
		t.Fatalf("userId=%q", got)
	}
	user, ok := res.Tree.Record("user")
	if !ok || user["name"] != tree.String("Alice") {
		t.Fatalf("user=%#v", res.Tree["user"])
	}
	if code, ok := res.Tree.Text("Code"); !ok || code != "0" {
		t.Fatalf("Code=%q,%v", code, ok)
	}
}

func TestDecodeNestedAddressBook(t *testing.T) {
	testlog.Start(t)
	doc := `<ablist size="2">` +
		`<abentry id="1"><name>Bob</name><phone type="work">100</phone><phone type="cell">200</phone></abentry>` +
		`<abentry id="2"><name>Carol</name></abentry>` +
		`</ablist>`
	res, err := Decode([]byte(doc), registry(t, command.AddressBook{}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	entries, ok := res.Tree["abentry"].(tree.List)
	if !ok || len(entries) != 2 {
		t.Fatalf("abentry=%#v", res.Tree["abentry"])
	}
	if name, _ := entries[0].Text("name"); name != "Bob" {
		t.Fatalf("name=%q", name)
	}
	phones, ok := entries[0]["phone"].(tree.List)
	if !ok || len(phones) != 2 || phones[1]["type"] != tree.String("cell") || phones[1]["phone"] != tree.String("200") {
		t.Fatalf("phones=%#v", entries[0]["phone"])
	}
	if _, ok := entries[1]["phone"]; ok {
		t.Fatalf("second entry should have no phone")
	}
	if name, _ := entries[1].Text("name"); name != "Carol" {
		t.Fatalf("name=%q", name)
	}
	if size, _ := res.Tree.String("size"); size != "2" {
		t.Fatalf("size=%q", size)
	}
}

func TestDecodeRootTextAndEntities(t *testing.T) {
	testlog.Start(t)
	doc := `<message from="42" msgId="7" delivered="false">fish &amp; chips<![CDATA[ <now>]]></message>`
	res, err := Decode([]byte(doc), registry(t, command.Message{}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, _ := res.Tree.String("message"); got != "fish & chips <now>" {
		t.Fatalf("text=%q", got)
	}
	if got, _ := res.Tree.String("delivered"); got != "false" {
		t.Fatalf("delivered=%q", got)
	}
}

func TestDecodeNonConsecutiveRepeatsShareList(t *testing.T) {
	testlog.Start(t)
	res, err := Decode([]byte(`<a><b id="1"/><c/><b id="2"/></a>`), registry(t, expecting("a")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l, ok := res.Tree["b"].(tree.List); !ok || len(l) != 2 {
		t.Fatalf("b=%#v", res.Tree["b"])
	}
	if _, ok := res.Tree["c"].(tree.Record); !ok {
		t.Fatalf("c=%#v", res.Tree["c"])
	}
}

func TestDecodeNilResolver(t *testing.T) {
	res, err := Decode([]byte(`<a/>`), nil)
	if err != nil || res.Matched() {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestDecodeChildElementReplacesSameNamedAttribute(t *testing.T) {
	testlog.Start(t)
	res, err := Decode([]byte(`<a b="1" c="keep"><b x="2"/></a>`), registry(t, expecting("a")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	child, ok := res.Tree["b"].(tree.Record)
	if !ok || child["x"] != tree.String("2") {
		t.Fatalf("b=%#v", res.Tree["b"])
	}
	if got, _ := res.Tree.String("c"); got != "keep" {
		t.Fatalf("c=%q", got)
	}
}

func TestDecodeTextReplacesAttributeNamedLikeElement(t *testing.T) {
	testlog.Start(t)
	res, err := Decode([]byte(`<a><b b="attr" y="1">text</b></a>`), registry(t, expecting("a")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, ok := res.Tree.Record("b")
	if !ok {
		t.Fatalf("b=%#v", res.Tree["b"])
	}
	if got, _ := b.String("b"); got != "text" {
		t.Fatalf("b.b=%q", got)
	}
	if got, _ := b.String("y"); got != "1" {
		t.Fatalf("b.y=%q", got)
	}
}
