package email

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/emersion/go-imap/v2"
)

// IMAPDateLayout is the date format of IMAP SEARCH date arguments.
const IMAPDateLayout = "02-Jan-2006"

// ErrInvalidSearch is returned when a search filter cannot be compiled
var ErrInvalidSearch = errors.New("invalid search criteria")

// FormatSearchCriteria prepares a user-supplied IMAP search filter for a scan.
// An empty filter becomes ALL, the filter is wrapped in parentheses unless it
// already is, and a SINCE clause with the cutoff date is appended unless the
// filter already contains one.
func FormatSearchCriteria(criteria string, since time.Time) string {
	c := strings.TrimSpace(criteria)
	if c == "" {
		c = "ALL"
	}
	if !(strings.HasPrefix(c, "(") && strings.HasSuffix(c, ")")) {
		c = "(" + c + ")"
	}
	if strings.Contains(strings.ToUpper(c), "SINCE") {
		return c
	}
	return c + " SINCE " + since.Format(IMAPDateLayout)
}

// CompileSearchCriteria converts a textual IMAP search filter such as
// `(FROM "dhl") SINCE 01-Jul-2024` into structured search criteria. Supported
// keys are ALL, FROM, TO, CC, BCC, SUBJECT, BODY, TEXT, HEADER, SINCE, BEFORE,
// ON, SENTSINCE, SENTBEFORE, SENTON, LARGER, SMALLER, the flag keys and the OR
// and NOT operators. Adjacent keys are combined with AND.
func CompileSearchCriteria(criteria string) (*imap.SearchCriteria, error) {
	tokens, err := tokenizeSearch(criteria)
	if err != nil {
		return nil, err
	}

	p := &searchParser{tokens: tokens}
	result := &imap.SearchCriteria{}
	for !p.done() {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		mergeCriteria(result, key)
	}
	return result, nil
}

type searchToken struct {
	value  string
	quoted bool
}

func tokenizeSearch(s string) ([]searchToken, error) {
	var tokens []searchToken
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')':
			tokens = append(tokens, searchToken{value: string(r)})
			i++
		case r == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(runes) {
				if runes[i] == '\\' && i+1 < len(runes) {
					b.WriteRune(runes[i+1])
					i += 2
					continue
				}
				if runes[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated quoted string", ErrInvalidSearch)
			}
			tokens = append(tokens, searchToken{value: b.String(), quoted: true})
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' && runes[i] != '"' {
				i++
			}
			tokens = append(tokens, searchToken{value: string(runes[start:i])})
		}
	}
	return tokens, nil
}

type searchParser struct {
	tokens []searchToken
	pos    int
}

func (p *searchParser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *searchParser) next() (searchToken, error) {
	if p.done() {
		return searchToken{}, fmt.Errorf("%w: unexpected end of input", ErrInvalidSearch)
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, nil
}

func (p *searchParser) argument(key string) (string, error) {
	tok, err := p.next()
	if err != nil {
		return "", fmt.Errorf("%w: %s requires an argument", ErrInvalidSearch, key)
	}
	if !tok.quoted && (tok.value == "(" || tok.value == ")") {
		return "", fmt.Errorf("%w: %s requires an argument", ErrInvalidSearch, key)
	}
	return tok.value, nil
}

func (p *searchParser) date(key string) (time.Time, error) {
	arg, err := p.argument(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2-Jan-2006", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s date %q: %v", ErrInvalidSearch, key, arg, err)
	}
	return t, nil
}

func (p *searchParser) number(key string) (int64, error) {
	arg, err := p.argument(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s size %q", ErrInvalidSearch, key, arg)
	}
	return n, nil
}

var flagKeys = map[string]struct {
	flag imap.Flag
	set  bool
}{
	"SEEN":       {imap.FlagSeen, true},
	"UNSEEN":     {imap.FlagSeen, false},
	"ANSWERED":   {imap.FlagAnswered, true},
	"UNANSWERED": {imap.FlagAnswered, false},
	"FLAGGED":    {imap.FlagFlagged, true},
	"UNFLAGGED":  {imap.FlagFlagged, false},
	"DELETED":    {imap.FlagDeleted, true},
	"UNDELETED":  {imap.FlagDeleted, false},
	"DRAFT":      {imap.FlagDraft, true},
	"UNDRAFT":    {imap.FlagDraft, false},
}

var headerKeys = map[string]string{
	"FROM":    "From",
	"TO":      "To",
	"CC":      "Cc",
	"BCC":     "Bcc",
	"SUBJECT": "Subject",
}

func (p *searchParser) parseKey() (*imap.SearchCriteria, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.quoted {
		return nil, fmt.Errorf("%w: unexpected string %q", ErrInvalidSearch, tok.value)
	}

	c := &imap.SearchCriteria{}
	key := strings.ToUpper(tok.value)

	if field, ok := headerKeys[key]; ok {
		arg, err := p.argument(key)
		if err != nil {
			return nil, err
		}
		c.Header = append(c.Header, imap.SearchCriteriaHeaderField{Key: field, Value: arg})
		return c, nil
	}
	if f, ok := flagKeys[key]; ok {
		if f.set {
			c.Flag = append(c.Flag, f.flag)
		} else {
			c.NotFlag = append(c.NotFlag, f.flag)
		}
		return c, nil
	}

	switch key {
	case "(":
		for {
			if p.done() {
				return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidSearch)
			}
			if t := p.tokens[p.pos]; !t.quoted && t.value == ")" {
				p.pos++
				return c, nil
			}
			inner, err := p.parseKey()
			if err != nil {
				return nil, err
			}
			mergeCriteria(c, inner)
		}
	case ")":
		return nil, fmt.Errorf("%w: unexpected closing parenthesis", ErrInvalidSearch)
	case "ALL":
		return c, nil
	case "NOT":
		inner, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		c.Not = append(c.Not, *inner)
	case "OR":
		left, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		right, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		c.Or = append(c.Or, [2]imap.SearchCriteria{*left, *right})
	case "BODY":
		arg, err := p.argument(key)
		if err != nil {
			return nil, err
		}
		c.Body = append(c.Body, arg)
	case "TEXT":
		arg, err := p.argument(key)
		if err != nil {
			return nil, err
		}
		c.Text = append(c.Text, arg)
	case "HEADER":
		field, err := p.argument(key)
		if err != nil {
			return nil, err
		}
		value, err := p.argument(key)
		if err != nil {
			return nil, err
		}
		c.Header = append(c.Header, imap.SearchCriteriaHeaderField{Key: field, Value: value})
	case "SINCE":
		if c.Since, err = p.date(key); err != nil {
			return nil, err
		}
	case "BEFORE":
		if c.Before, err = p.date(key); err != nil {
			return nil, err
		}
	case "ON":
		d, err := p.date(key)
		if err != nil {
			return nil, err
		}
		c.Since = d
		c.Before = d.AddDate(0, 0, 1)
	case "SENTSINCE":
		if c.SentSince, err = p.date(key); err != nil {
			return nil, err
		}
	case "SENTBEFORE":
		if c.SentBefore, err = p.date(key); err != nil {
			return nil, err
		}
	case "SENTON":
		d, err := p.date(key)
		if err != nil {
			return nil, err
		}
		c.SentSince = d
		c.SentBefore = d.AddDate(0, 0, 1)
	case "LARGER":
		if c.Larger, err = p.number(key); err != nil {
			return nil, err
		}
	case "SMALLER":
		if c.Smaller, err = p.number(key); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported key %q", ErrInvalidSearch, tok.value)
	}
	return c, nil
}

// mergeCriteria adds src to dst so that a message must match both.
func mergeCriteria(dst, src *imap.SearchCriteria) {
	dst.Header = append(dst.Header, src.Header...)
	dst.Body = append(dst.Body, src.Body...)
	dst.Text = append(dst.Text, src.Text...)
	dst.Flag = append(dst.Flag, src.Flag...)
	dst.NotFlag = append(dst.NotFlag, src.NotFlag...)
	dst.Not = append(dst.Not, src.Not...)
	dst.Or = append(dst.Or, src.Or...)

	dst.Since = laterDate(dst.Since, src.Since)
	dst.SentSince = laterDate(dst.SentSince, src.SentSince)
	dst.Before = earlierDate(dst.Before, src.Before)
	dst.SentBefore = earlierDate(dst.SentBefore, src.SentBefore)

	if src.Larger > dst.Larger {
		dst.Larger = src.Larger
	}
	if src.Smaller > 0 && (dst.Smaller == 0 || src.Smaller < dst.Smaller) {
		dst.Smaller = src.Smaller
	}
}

func laterDate(a, b time.Time) time.Time {
	if a.IsZero() || b.After(a) {
		return b
	}
	return a
}

func earlierDate(a, b time.Time) time.Time {
	if a.IsZero() || (!b.IsZero() && b.Before(a)) {
		return b
	}
	return a
}
