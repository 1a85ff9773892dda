package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	applog "essentia/internal/log"
)

// DefaultPubChemURL is the PUG REST prefix for compound lookups.
const DefaultPubChemURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

const pubchemProperties = "MolecularFormula,MolecularWeight,IUPACName,XLogP"

// PubChemAdapter resolves ingredient names against the PubChem PUG REST API.
// It is the authority for chemical identity fields: CAS, formula, molecular
// weight, and the IUPAC name.
type PubChemAdapter struct {
	baseURL string
	client  *sourceClient
}

// NewPubChemAdapter builds an adapter over the given PUG REST prefix.
// An empty baseURL selects the public PubChem endpoint.
func NewPubChemAdapter(baseURL string, httpClient *http.Client, limiter *Limiter, retries int) *PubChemAdapter {
	if baseURL == "" {
		baseURL = DefaultPubChemURL
	}
	return &PubChemAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newSourceClient(SourcePubChem, httpClient, limiter, retries),
	}
}

func (a *PubChemAdapter) Source() Source { return SourcePubChem }

type pubchemPropertyTable struct {
	PropertyTable struct {
		Properties []struct {
			CID              int      `json:"CID"`
			MolecularFormula string   `json:"MolecularFormula"`
			MolecularWeight  string   `json:"MolecularWeight"`
			IUPACName        string   `json:"IUPACName"`
			XLogP            *float64 `json:"XLogP"`
		} `json:"Properties"`
	} `json:"PropertyTable"`
}

type pubchemSynonymList struct {
	InformationList struct {
		Information []struct {
			CID     int      `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

// Fetch looks the query up by name. PubChem indexes pure compounds, so
// naturals ("bergamot essential oil") usually miss until the preparation
// suffix is stripped by the caller's variant loop.
func (a *PubChemAdapter) Fetch(ctx context.Context, q Query) (*PartialRecord, error) {
	propURL := fmt.Sprintf("%s/compound/name/%s/property/%s/JSON",
		a.baseURL, url.PathEscape(q.Raw), pubchemProperties)

	var table pubchemPropertyTable
	if err := a.client.getJSON(ctx, propURL, &table); err != nil {
		return nil, err
	}
	if len(table.PropertyTable.Properties) == 0 {
		return nil, ErrNoMatch
	}
	prop := table.PropertyTable.Properties[0]

	// The record answers for the queried name. Without it a CAS-less
	// answer has no identity at all and can never merge with the odor
	// source's record for the same query.
	rec := &PartialRecord{
		Source:          SourcePubChem,
		Query:           q,
		Name:            q.Raw,
		CompoundID:      prop.CID,
		Formula:         prop.MolecularFormula,
		MolecularWeight: prop.MolecularWeight,
		IUPACName:       prop.IUPACName,
	}
	if prop.XLogP != nil {
		rec.LogP = strconv.FormatFloat(*prop.XLogP, 'f', -1, 64)
	}

	// Synonyms carry the CAS number. A failure here degrades the record
	// rather than failing the lookup.
	if prop.CID > 0 {
		if err := a.fetchSynonyms(ctx, prop.CID, rec); err != nil {
			applog.Warn(ctx, "pubchem synonyms unavailable",
				"query", q.Raw, "cid", prop.CID, "error", err)
		}
	}

	if rec.CAS == "" && q.CASHint != "" {
		rec.CAS = q.CASHint
	}
	return rec, nil
}

func (a *PubChemAdapter) fetchSynonyms(ctx context.Context, cid int, rec *PartialRecord) error {
	synURL := fmt.Sprintf("%s/compound/cid/%d/synonyms/JSON", a.baseURL, cid)

	var list pubchemSynonymList
	if err := a.client.getJSON(ctx, synURL, &list); err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil
		}
		return err
	}
	if len(list.InformationList.Information) == 0 {
		return nil
	}

	synonyms := list.InformationList.Information[0].Synonym
	for _, s := range synonyms {
		if rec.CAS == "" {
			if cas := ExtractCAS(s); cas != "" {
				rec.CAS = cas
			}
		}
	}
	rec.Synonyms = append(rec.Synonyms, synonyms...)
	return nil
}
