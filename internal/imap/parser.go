package imap

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"
	// Registers decoders for non-UTF-8 charsets with go-message.
	_ "github.com/emersion/go-message/charset"
	"github.com/leadsengine/dashboard/internal/mailbox"
)

// maxPartSize caps how much of a single body part is read.
const maxPartSize = 10 << 20

// ParseMessage converts a fetched IMAP message to the engine's RawMessage.
// Messages without a Message-ID get a stable id derived from the mailbox's
// UIDVALIDITY and the message UID.
func ParseMessage(imapMsg *imap.Message, uidValidity uint32) (mailbox.RawMessage, error) {
	if imapMsg == nil {
		return mailbox.RawMessage{}, fmt.Errorf("imap message is nil")
	}

	raw := mailbox.RawMessage{
		UID:       imapMsg.Uid,
		Structure: ConvertBodyStructure(imapMsg.BodyStructure),
	}

	if env := imapMsg.Envelope; env != nil {
		if len(env.From) > 0 {
			raw.From = formatAddress(env.From[0])
		}
		raw.To = formatAddressList(env.To)
		raw.CC = formatAddressList(env.Cc)
		raw.Subject = env.Subject
		raw.Date = env.Date
		raw.ExternalID = strings.TrimSpace(env.MessageId)
	}

	if raw.ExternalID == "" {
		raw.ExternalID = fallbackID(uidValidity, imapMsg.Uid)
	}

	return raw, nil
}

func fallbackID(uidValidity, uid uint32) string {
	return "imap:" + strconv.FormatUint(uint64(uidValidity), 10) + ":" + strconv.FormatUint(uint64(uid), 10)
}

// ConvertBodyStructure turns a BODYSTRUCTURE response into a part tree whose
// leaf ids are IMAP section paths.
func ConvertBodyStructure(bs *imap.BodyStructure) mailbox.Part {
	if bs == nil {
		return nil
	}
	// A single-part message's body is section 1.
	if !strings.EqualFold(bs.MIMEType, "multipart") {
		return convertNode(bs, "1")
	}
	return convertNode(bs, "")
}

func convertNode(bs *imap.BodyStructure, path string) mailbox.Part {
	if strings.EqualFold(bs.MIMEType, "multipart") {
		container := mailbox.Container{Subtype: strings.ToLower(bs.MIMESubType)}
		for i, child := range bs.Parts {
			if child == nil {
				continue
			}
			childPath := strconv.Itoa(i + 1)
			if path != "" {
				childPath = path + "." + childPath
			}
			container.Children = append(container.Children, convertNode(child, childPath))
		}
		return container
	}

	return mailbox.Leaf{
		ID:       path,
		Type:     strings.ToLower(bs.MIMEType),
		Subtype:  strings.ToLower(bs.MIMESubType),
		Encoding: strings.ToLower(bs.Encoding),
		Charset:  bs.Params["charset"],
	}
}

// DecodePart decodes the transfer encoding and charset of a downloaded part.
// Unknown charsets and encodings fall back to the raw bytes.
func DecodePart(r io.Reader, leaf mailbox.Leaf) (string, error) {
	var h message.Header
	params := map[string]string{}
	if leaf.Charset != "" {
		params["charset"] = leaf.Charset
	}
	h.SetContentType(leaf.Type+"/"+leaf.Subtype, params)
	if leaf.Encoding != "" {
		h.Set("Content-Transfer-Encoding", leaf.Encoding)
	}

	entity, err := message.New(h, r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return "", fmt.Errorf("failed to decode part %s: %w", leaf.ID, err)
	}

	body, err := io.ReadAll(io.LimitReader(entity.Body, maxPartSize))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read part %s: %w", leaf.ID, err)
	}

	return string(body), nil
}

// formatAddress returns the bare mailbox@host form of an address.
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.HostName == "" {
		return address.MailboxName
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

// formatAddressList formats a list of IMAP addresses.
func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		formatted := formatAddress(address)
		if formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
