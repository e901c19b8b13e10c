package audit

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/google/uuid"
)

// Document is the portable form of a delivered work item used by the
// writer, database and message-bus authorities.
type Document struct {
	ID        string          `json:"id"`
	Tag       string          `json:"tag"`
	Category  string          `json:"category,omitempty"`
	AuditID   uint16          `json:"audit_id,omitempty"`
	Type      string          `json:"type,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	LogonID   string          `json:"logon_id,omitempty"`
	Params    []DocumentParam `json:"params,omitempty"`
}

// DocumentParam is one rendered parameter.
type DocumentParam struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewDocument decodes item into a Document with a fresh ID.
func NewDocument(item *WorkItem) (Document, error) {
	doc := Document{
		ID:  uuid.NewString(),
		Tag: item.Tag.String(),
	}
	if item.Tag == TagDeleteLogon {
		doc.LogonID = item.LogonID.String()
		doc.Timestamp = time.Now().UTC()
		return doc, nil
	}

	rec, err := Decode(item.Buffer)
	if err != nil {
		return Document{}, err
	}
	doc.Category = rec.Category.String()
	doc.AuditID = rec.AuditID
	doc.Type = rec.Type.String()
	doc.Timestamp = rec.Timestamp
	doc.Params = make([]DocumentParam, len(rec.Params))
	for i, p := range rec.Params {
		doc.Params[i] = DocumentParam{Type: p.ParamType().String(), Value: FormatParam(p)}
	}
	return doc, nil
}

var privilegeNames = privilege.DefaultRegistry()

// FormatParam renders a parameter the way audit viewers show it.
func FormatParam(p Param) string {
	switch v := p.(type) {
	case None:
		return ""
	case NoLogonID:
		return "-"
	case String:
		return string(v)
	case FileSpec:
		return string(v)
	case Ulong:
		return strconv.FormatUint(uint64(v), 10)
	case HexUlong:
		return fmt.Sprintf("0x%x", uint32(v))
	case AccessMask:
		return fmt.Sprintf("0x%08x", uint32(v))
	case SIDParam:
		return v.SID.String()
	case LogonID:
		return ident.LUID(v).String()
	case LUIDParam:
		return ident.LUID(v).String()
	case Privileges:
		names := make([]string, len(v.Set.Privileges))
		for i, priv := range v.Set.Privileges {
			name, ok := privilegeNames.Name(priv.LUID)
			if !ok {
				name = priv.LUID.String()
			}
			names[i] = name
		}
		return strings.Join(names, " ")
	case Ptr:
		return fmt.Sprintf("0x%x", uint64(v))
	case HexInt64:
		return fmt.Sprintf("0x%x", uint64(v))
	case Time:
		return v.At.Format(time.RFC3339Nano)
	case Duration:
		return time.Duration(v).String()
	case GUID:
		return uuid.UUID(v).String()
	case SockAddr:
		return netip.AddrPort(v).String()
	}
	return ""
}
