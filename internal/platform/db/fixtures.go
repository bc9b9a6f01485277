package db

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document loaded by the seed command.
type Fixtures struct {
	Holidays  []HolidayFixture `yaml:"holidays"`
	Factories []FactoryFixture `yaml:"factories"`
}

type FactoryFixture struct {
	Code               string            `yaml:"code"`
	Name               string            `yaml:"name"`
	DailyApprovalLimit *int              `yaml:"dailyApprovalLimit"`
	Groups             []GroupFixture    `yaml:"groups"`
	Holidays           []HolidayFixture  `yaml:"holidays"`
	Employees          []EmployeeFixture `yaml:"employees"`
}

type GroupFixture struct {
	Name  string `yaml:"name"`
	Shift string `yaml:"shift"`
}

type HolidayFixture struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

type EmployeeFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Role     string `yaml:"role"`
	Group    string `yaml:"group"`
	Leads    string `yaml:"leads"`
	Password string `yaml:"password"`
}

func LoadFixtures(path string) (Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fixtures{}, err
	}
	defer f.Close()
	return ParseFixtures(f)
}

func ParseFixtures(r io.Reader) (Fixtures, error) {
	var out Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && err != io.EOF {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := out.validate(); err != nil {
		return Fixtures{}, err
	}
	return out, nil
}

func (f Fixtures) validate() error {
	for _, h := range f.Holidays {
		if err := h.validate(); err != nil {
			return err
		}
	}
	codes := map[string]bool{}
	for _, factory := range f.Factories {
		code := strings.TrimSpace(factory.Code)
		if code == "" || strings.TrimSpace(factory.Name) == "" {
			return fmt.Errorf("factory fixture requires code and name")
		}
		if codes[code] {
			return fmt.Errorf("duplicate factory code %q", code)
		}
		codes[code] = true
		if factory.DailyApprovalLimit != nil && *factory.DailyApprovalLimit < 0 {
			return fmt.Errorf("factory %s: dailyApprovalLimit must not be negative", code)
		}
		groups := map[string]bool{}
		for _, g := range factory.Groups {
			switch g.Shift {
			case "morning", "afternoon", "night":
			default:
				return fmt.Errorf("factory %s group %q: unknown shift %q", code, g.Name, g.Shift)
			}
			groups[g.Name] = true
		}
		for _, h := range factory.Holidays {
			if err := h.validate(); err != nil {
				return fmt.Errorf("factory %s: %w", code, err)
			}
		}
		for _, e := range factory.Employees {
			if strings.TrimSpace(e.Email) == "" || strings.TrimSpace(e.Name) == "" {
				return fmt.Errorf("factory %s: employee fixture requires name and email", code)
			}
			if e.Group != "" && !groups[e.Group] {
				return fmt.Errorf("factory %s employee %s: unknown group %q", code, e.Email, e.Group)
			}
			switch e.Leads {
			case "", "primary", "secondary":
			default:
				return fmt.Errorf("factory %s employee %s: leads must be primary or secondary", code, e.Email)
			}
			if e.Leads != "" && e.Group == "" {
				return fmt.Errorf("factory %s employee %s: leads requires a group", code, e.Email)
			}
		}
	}
	return nil
}

func (h HolidayFixture) validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("holiday fixture requires a name")
	}
	if _, err := h.parsedDate(); err != nil {
		return fmt.Errorf("holiday %q: date must be YYYY-MM-DD", h.Name)
	}
	return nil
}

func (h HolidayFixture) parsedDate() (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(h.Date))
}
