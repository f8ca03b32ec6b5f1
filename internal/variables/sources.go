package variables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a posting or profile does not exist.
var ErrNotFound = errors.New("variable source not found")

// ProfileProvider supplies the applicant's personal information.
type ProfileProvider interface {
	Profile(ctx context.Context) (Profile, error)
}

// PostingProvider supplies metadata extracted from a job posting.
type PostingProvider interface {
	Posting(ctx context.Context, id string) (Posting, error)
}

// Profile is the applicant's personal information.
type Profile struct {
	FirstName        string            `yaml:"first_name" json:"firstName"`
	LastName         string            `yaml:"last_name" json:"lastName"`
	FullName         string            `yaml:"full_name" json:"fullName"`
	Email            string            `yaml:"email" json:"email"`
	Phone            string            `yaml:"phone" json:"phone"`
	AddressLine      string            `yaml:"address_line" json:"addressLine"`
	City             string            `yaml:"city" json:"city"`
	PostalCode       string            `yaml:"postal_code" json:"postalCode"`
	Country          string            `yaml:"country" json:"country"`
	GitHubUsername   string            `yaml:"github_username" json:"githubUsername"`
	LinkedInUsername string            `yaml:"linkedin_username" json:"linkedinUsername"`
	WebsiteURL       string            `yaml:"website_url" json:"websiteUrl"`
	CustomVariables  map[string]string `yaml:"custom_variables" json:"customVariables"`
}

// Values flattens the profile. Custom variables are applied after the fixed
// fields so a profile can override them explicitly.
func (p Profile) Values() map[string]string {
	full := p.FullName
	if full == "" {
		full = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	out := map[string]string{
		"first_name":        p.FirstName,
		"last_name":         p.LastName,
		"full_name":         full,
		"email":             p.Email,
		"phone":             p.Phone,
		"address_line":      p.AddressLine,
		"city":              p.City,
		"postal_code":       p.PostalCode,
		"country":           p.Country,
		"github_username":   p.GitHubUsername,
		"linkedin_username": p.LinkedInUsername,
		"website_url":       p.WebsiteURL,
	}
	if p.GitHubUsername != "" {
		out["github_url"] = "https://github.com/" + p.GitHubUsername
	}
	if p.LinkedInUsername != "" {
		out["linkedin_url"] = "https://www.linkedin.com/in/" + p.LinkedInUsername
	}
	for k, v := range p.CustomVariables {
		out[k] = v
	}
	return out
}

// Posting is the metadata extracted from one job posting.
type Posting struct {
	ID                    string            `json:"id"`
	CompanyName           string            `json:"company_name"`
	JobTitle              string            `json:"job_title"`
	RecipientName         string            `json:"recipient_name"`
	StreetAddress         string            `json:"street_address"`
	City                  string            `json:"city"`
	ZipCode               string            `json:"zip_code"`
	SalaryRange           string            `json:"salary_range"`
	JobDescriptionSummary string            `json:"job_description_summary"`
	Extra                 map[string]string `json:"extra,omitempty"`
}

// Values flattens the posting metadata. The company address is keyed with a
// company_ prefix so it sits beside the applicant's own address fields.
func (p Posting) Values() map[string]string {
	out := map[string]string{
		"company_name":            p.CompanyName,
		"job_title":               p.JobTitle,
		"recipient_name":          p.RecipientName,
		"company_street_address":  p.StreetAddress,
		"company_city":            p.City,
		"company_zip_code":        p.ZipCode,
		"salary_range":            p.SalaryRange,
		"job_description_summary": p.JobDescriptionSummary,
	}
	for k, v := range p.Extra {
		out[k] = v
	}
	return out
}

// FileProfile reads the profile from a YAML file on every call.
type FileProfile struct {
	Path string
}

// Profile returns an empty profile when the file does not exist.
func (f FileProfile) Profile(ctx context.Context) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", f.Path, err)
	}
	return p, nil
}

// PostingDir reads postings stored as <id>.json in Dir.
type PostingDir struct {
	Dir string
}

// Posting loads the posting with the given id.
func (d PostingDir) Posting(ctx context.Context, id string) (Posting, error) {
	if err := ctx.Err(); err != nil {
		return Posting{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return Posting{}, fmt.Errorf("%w: invalid posting id %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(d.Dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return Posting{}, fmt.Errorf("%w: posting %s", ErrNotFound, id)
	}
	if err != nil {
		return Posting{}, fmt.Errorf("read posting: %w", err)
	}
	var p Posting
	if err := json.Unmarshal(data, &p); err != nil {
		return Posting{}, fmt.Errorf("parse posting %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}
