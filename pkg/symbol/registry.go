package symbol

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned by lookups for unknown names or codes.
	ErrNotFound = errors.New("symbol not found")
	// ErrDuplicate is returned when a name or code is registered twice.
	ErrDuplicate = errors.New("duplicate symbol")
	// ErrFrozen is returned by Register after Freeze.
	ErrFrozen = errors.New("registry is frozen")
	// ErrInvalidName is returned for empty names or names that do not parse.
	ErrInvalidName = errors.New("invalid symbol name")
	// ErrExhausted is returned by Register when every code is taken.
	ErrExhausted = errors.New("symbol codes exhausted")
)

// Symbol maps a human-readable name to the numeric code stored in file headers.
type Symbol struct {
	Name string `yaml:"name" json:"name"`
	Code uint32 `yaml:"code" json:"code"`
}

// Lookup is the read-only view of a Registry.
type Lookup interface {
	LookupCode(name string) (uint32, error)
	LookupName(code uint32) (string, error)
}

// Registry is a bidirectional name/code mapping. Mutation happens through
// Register until Freeze is called; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]uint32
	byCode map[uint32]string
	next   uint64
	frozen bool
}

var _ Lookup = (*Registry)(nil)

// NewRegistry builds a registry from symbols, rejecting duplicate names or codes.
func NewRegistry(symbols ...Symbol) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]uint32, len(symbols)),
		byCode: make(map[uint32]string, len(symbols)),
		next:   1,
	}
	for _, s := range symbols {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: empty name for code %d", ErrInvalidName, s.Code)
		}
		if code, ok := r.byName[s.Name]; ok {
			return nil, fmt.Errorf("%w: name %q has codes %d and %d", ErrDuplicate, s.Name, code, s.Code)
		}
		if name, ok := r.byCode[s.Code]; ok {
			return nil, fmt.Errorf("%w: code %d used by %q and %q", ErrDuplicate, s.Code, name, s.Name)
		}
		r.byName[s.Name] = s.Code
		r.byCode[s.Code] = s.Name
		if uint64(s.Code) >= r.next {
			r.next = uint64(s.Code) + 1
		}
	}
	return r, nil
}

// Register returns the code for name, assigning the next free code if name is
// new. Codes above the highest one in use are handed out first. Once MaxUint32
// is taken the lowest free non-zero code is used.
func (r *Registry) Register(name string) (uint32, error) {
	if name == "" {
		return 0, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.byName[name]; ok {
		return code, nil
	}
	if r.frozen {
		return 0, fmt.Errorf("%w: cannot register %q", ErrFrozen, name)
	}
	code, ok := r.nextFree()
	if !ok {
		return 0, fmt.Errorf("%w: cannot register %q", ErrExhausted, name)
	}
	r.byName[name] = code
	r.byCode[code] = name
	return code, nil
}

func (r *Registry) nextFree() (uint32, bool) {
	if r.next <= math.MaxUint32 {
		code := uint32(r.next)
		r.next++
		return code, true
	}
	for code := uint32(1); code != 0; code++ {
		if _, taken := r.byCode[code]; !taken {
			return code, true
		}
	}
	return 0, false
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// LookupCode returns the code registered for name.
func (r *Registry) LookupCode(name string) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return code, nil
}

// LookupName returns the name registered for code.
func (r *Registry) LookupName(code uint32) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byCode[code]
	if !ok {
		return "", fmt.Errorf("%w: code %d", ErrNotFound, code)
	}
	return name, nil
}

// Symbols lists every registered symbol ordered by code.
func (r *Registry) Symbols() []Symbol {
	r.mu.RLock()
	symbols := lo.MapToSlice(r.byCode, func(code uint32, name string) Symbol {
		return Symbol{Name: name, Code: code}
	})
	r.mu.RUnlock()

	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Code < symbols[j].Code })
	return symbols
}

type registryFile struct {
	Symbols []Symbol `yaml:"symbols"`
}

// LoadYAML builds a registry from a document of the form
//
//	symbols:
//	  - name: bnc_btc_eth
//	    code: 1
func LoadYAML(rd io.Reader) (*Registry, error) {
	var file registryFile
	if err := yaml.NewDecoder(rd).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode symbol registry: %w", err)
	}
	return NewRegistry(file.Symbols...)
}

// MarshalYAML writes the registry in the format read by LoadYAML.
func (r *Registry) MarshalYAML() (any, error) {
	return registryFile{Symbols: r.Symbols()}, nil
}

// Parts is the decomposition of an exchange_currency_asset name.
type Parts struct {
	Exchange string
	Currency string
	Asset    string
}

// Parse splits a name of the form exchange_currency_asset, e.g. "bnc_btc_eth".
func Parse(name string) (Parts, error) {
	fields := strings.Split(name, "_")
	if len(fields) != 3 || lo.Contains(fields, "") {
		return Parts{}, fmt.Errorf("%w: %q is not exchange_currency_asset", ErrInvalidName, name)
	}
	return Parts{Exchange: fields[0], Currency: fields[1], Asset: fields[2]}, nil
}

func (p Parts) String() string {
	return p.Exchange + "_" + p.Currency + "_" + p.Asset
}
