// internal/directory/directory.go
package directory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// Directory is the CSV-backed customer organization directory. Lookups read
// an immutable table snapshot; RefreshIfChanged swaps in a new table when
// the backing file's mtime moves.
type Directory struct {
	path    string
	log     logger.Logger
	table   atomic.Pointer[table]
	modTime atomic.Int64
}

type table struct {
	byDomain map[string]models.OrganizationRecord
	names    map[string][]string // organization name -> name + aliases
}

// New loads the directory from path. A missing or malformed file is an
// error at startup; later refresh failures keep the previous table.
func New(path string, log logger.Logger) (*Directory, error) {
	if log == nil {
		log = logger.Nop()
	}
	d := &Directory{path: path, log: log}
	if _, err := d.RefreshIfChanged(); err != nil {
		return nil, err
	}
	return d, nil
}

// Lookup resolves a requester email domain to its organization record.
// Unknown domains get a synthesized default record with Known=false; the
// caller decides whether to fail open.
func (d *Directory) Lookup(domain string) models.OrganizationRecord {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if t := d.table.Load(); t != nil {
		if rec, ok := t.byDomain[domain]; ok {
			return rec
		}
	}

	d.log.Warn("unknown requester domain, using default record", map[string]interface{}{
		"domain": domain,
	})
	return models.OrganizationRecord{
		Domain:       domain,
		Organization: "Unknown",
		Role:         "customer",
		Grouping:     "",
		Known:        false,
	}
}

// AllNamesAndAliases returns every organization name mapped to the match
// terms (full name plus derived aliases) the access gate scans for.
func (d *Directory) AllNamesAndAliases() map[string][]string {
	t := d.table.Load()
	if t == nil {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(t.names))
	for name, terms := range t.names {
		cp := make([]string, len(terms))
		copy(cp, terms)
		out[name] = cp
	}
	return out
}

// Stats reports the current table size for health output.
func (d *Directory) Stats() (organizations int, refreshedAt time.Time) {
	t := d.table.Load()
	if t != nil {
		organizations = len(t.byDomain)
	}
	return organizations, time.Unix(0, d.modTime.Load())
}

// RefreshIfChanged reloads the backing file when its mtime differs from the
// last load. Returns whether a reload happened.
func (d *Directory) RefreshIfChanged() (bool, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return false, fmt.Errorf("stat directory file: %w", err)
	}
	mtime := info.ModTime().UnixNano()
	if d.table.Load() != nil && mtime == d.modTime.Load() {
		return false, nil
	}

	t, err := d.load()
	if err != nil {
		return false, err
	}
	d.table.Store(t)
	d.modTime.Store(mtime)
	d.log.Info("customer directory loaded", map[string]interface{}{
		"path":          d.path,
		"organizations": len(t.byDomain),
	})
	return true, nil
}

func (d *Directory) load() (*table, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open directory file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read directory header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"domain", "customer"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("directory file missing column %q", required)
		}
	}

	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	t := &table{
		byDomain: make(map[string]models.OrganizationRecord),
		names:    make(map[string][]string),
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read directory row: %w", err)
		}

		domain := strings.ToLower(get(row, "domain"))
		name := get(row, "customer")
		if domain == "" || name == "" {
			continue
		}

		rec := models.OrganizationRecord{
			Domain:       domain,
			Organization: name,
			Platform:     get(row, "platform"),
			Role:         "customer",
			ProdVersion:  get(row, "prod_version"),
			Grouping:     strings.ToUpper(get(row, "grouping")),
			Aliases:      deriveAliases(name),
			Known:        true,
		}
		t.byDomain[domain] = rec

		// A distinct support-desk domain gets its own record so requests
		// from the support address resolve to the same organization.
		if support := strings.ToLower(get(row, "support_email")); support != "" {
			if at := strings.LastIndex(support, "@"); at >= 0 {
				supportDomain := support[at+1:]
				if supportDomain != "" && supportDomain != domain {
					deskRec := rec
					deskRec.Domain = supportDomain
					deskRec.SupportDesk = true
					t.byDomain[supportDomain] = deskRec
				}
			}
		}

		terms := append([]string{strings.ToLower(name)}, rec.Aliases...)
		t.names[name] = terms
	}

	return t, nil
}
