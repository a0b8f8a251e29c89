package address

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/pkg/errors"
)

var (
	// Returned when no domains are configured. It is a configuration error
	// and should be treated as fatal.
	ErrNoDomains = errors.New("no email domains configured")

	ErrInvalidAddress = errors.New("invalid address")
)

// A local part has to begin and end with an alphanumeric character. If the
// pattern below is updated, Generate needs to keep producing matching names.
var localPartPattern = regexp.MustCompile(`^[a-z\d]([a-z\d\.\-\_\+]*[a-z\d])?$`)

// While the standard says that this limit is 64, we never issue anything
// close to it.
const maxLocalPartSize = 64

// A disposable address of the form local@domain. Addresses are never
// mutated, replacing one means issuing a new Address.
type Address string

func (a Address) String() string {
	return string(a)
}

func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) Local() string {
	local, _, _ := strings.Cut(string(a), "@")
	return local
}

func (a Address) Domain() string {
	_, domain, _ := strings.Cut(string(a), "@")
	return domain
}

// Parses and normalizes a user provided address. The domain must be one of
// the permitted domains.
func Parse(value string, domains []string) (Address, error) {
	value = strings.ToLower(strings.TrimSpace(value))

	local, domain, ok := strings.Cut(value, "@")
	if !ok {
		return "", errors.Wrap(ErrInvalidAddress, "an address needs a local part and a domain")
	}

	if err := ValidateLocal(local); err != nil {
		return "", err
	}

	if !slices.Contains(domains, domain) {
		return "", errors.Wrap(ErrInvalidAddress, fmt.Sprintf("%s is not a permitted domain", domain))
	}

	return Address(local + "@" + domain), nil
}

// ValidateLocal checks the shape of a local part.
func ValidateLocal(local string) error {
	if len(local) == 0 {
		return errors.Wrap(ErrInvalidAddress, "the local part cannot be empty")
	}

	if len(local) > maxLocalPartSize {
		return errors.Wrap(
			ErrInvalidAddress,
			fmt.Sprintf("the local part cannot be longer than %d characters", maxLocalPartSize),
		)
	}

	if !localPartPattern.MatchString(local) {
		return errors.Wrap(
			ErrInvalidAddress,
			"the local part can only contain lower case letters, numbers, periods, "+
				"underscores, plus signs or hyphens, and, it needs to begin and end with an "+
				"alphanumeric character",
		)
	}

	return nil
}

// Generates random addresses on a fixed list of domains.
type Generator struct {
	domains []string

	lock  sync.Mutex
	faker *gofakeit.Faker
}

// Creates a generator. A zero seed uses a random seed. The domain list
// cannot be empty.
func NewGenerator(domains []string, seed uint64) (*Generator, error) {
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}

	return &Generator{
		domains: slices.Clone(domains),
		faker:   gofakeit.New(seed),
	}, nil
}

func (g *Generator) Domains() []string {
	return slices.Clone(g.domains)
}

// Returns true if the address is on one of the permitted domains.
func (g *Generator) Allowed(a Address) bool {
	if ValidateLocal(a.Local()) != nil {
		return false
	}
	return slices.Contains(g.domains, a.Domain())
}

// Generate returns a new random address. Collisions are possible and
// tolerated, the backend indexes mail per address and not per user.
func (g *Generator) Generate() Address {
	g.lock.Lock()
	defer g.lock.Unlock()

	local := sanitizeLocal(g.faker.Username())
	for local == "" {
		local = sanitizeLocal(g.faker.Username())
	}

	return Address(local + "@" + g.faker.RandomString(g.domains))
}

// Builds an address from a chosen local part and domain, mostly for when
// the user picks their own name.
func (g *Generator) Make(local string, domain string) (Address, error) {
	return Parse(local+"@"+domain, g.domains)
}

// Lowercases the name and drops anything that is not allowed in a local
// part, also making sure it begins and ends with an alphanumeric character.
func sanitizeLocal(name string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			builder.WriteRune(r)
		}
	}

	local := strings.Trim(builder.String(), ".-_")
	if len(local) > maxLocalPartSize {
		local = strings.Trim(local[:maxLocalPartSize], ".-_")
	}

	// Repeating symbols are legal but ugly.
	for _, symbol := range []string{"..", "--", "__"} {
		for strings.Contains(local, symbol) {
			local = strings.ReplaceAll(local, symbol, symbol[:1])
		}
	}

	return local
}
