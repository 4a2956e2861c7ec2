// Package detailing reads detailing-tool export files and turns them into
// neutral piece records.
package detailing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dialect lists the tag and attribute spellings recognised for every
// logical field. Aliases are tried in order and compared case-insensitively;
// the first alias present on an element wins.
type Dialect struct {
	RootMarkers  []string `yaml:"root_markers"`
	EntryMarkers []string `yaml:"entry_markers"`

	ProjectCode []string `yaml:"project_code"`
	ProjectName []string `yaml:"project_name"`
	ClientName  []string `yaml:"client_name"`
	Engineer    []string `yaml:"engineer"`
	ReportName  []string `yaml:"report_name"`

	Name          []string `yaml:"name"`
	Type          []string `yaml:"type"`
	Quantity      []string `yaml:"quantity"`
	Section       []string `yaml:"section"`
	Length        []string `yaml:"length"`
	Weight        []string `yaml:"weight"`
	UnitVolume    []string `yaml:"unit_volume"`
	MaterialClass []string `yaml:"material_class"`
	InstanceIDs   []string `yaml:"instance_ids"`
}

// DefaultDialect returns the spellings emitted by the Portuguese, Spanish
// and English builds of the detailing tool.
func DefaultDialect() *Dialect {
	return &Dialect{
		RootMarkers:  []string{"RELATORIO", "RELATORIO_PECAS", "INFORME", "REPORT"},
		EntryMarkers: []string{"PECA", "PIEZA", "PIECE"},

		ProjectCode: []string{"OBRA", "COD_OBRA", "CODIGO_OBRA", "PROJECT_CODE"},
		ProjectName: []string{"NOME_OBRA", "NOMBRE_OBRA", "DESCRICAO_OBRA", "PROJECT_NAME"},
		ClientName:  []string{"CLIENTE", "CLIENT"},
		Engineer:    []string{"PROJETISTA", "CALCULISTA", "PROYECTISTA", "ENGINEER"},
		ReportName:  []string{"TITULO", "NOME_RELATORIO", "TITLE", "REPORT_NAME"},

		Name:          []string{"MARCA", "NOME", "NOMBRE", "MARK", "NAME"},
		Type:          []string{"TIPO", "CATEGORIA", "TYPE"},
		Quantity:      []string{"QUANTIDADE", "QTDE", "QTD", "CANTIDAD", "QUANTITY", "QTY"},
		Section:       []string{"SECAO", "SEÇÃO", "SECCION", "SECCIÓN", "PERFIL", "SECTION"},
		Length:        []string{"COMPRIMENTO", "COMP", "LONGITUD", "LENGTH"},
		Weight:        []string{"PESO", "WEIGHT"},
		UnitVolume:    []string{"VOLUME", "VOL_UNIT", "VOLUMEN", "UNIT_VOLUME"},
		MaterialClass: []string{"CLASSE_CONCRETO", "FCK", "CLASE_HORMIGON", "CONCRETE_CLASS", "MATERIAL"},
		InstanceIDs:   []string{"IDS", "ETIQUETAS", "IDENTIFICADORES", "INSTANCE_IDS"},
	}
}

// LoadDialect reads a YAML dialect file. Keys present in the file replace
// the corresponding default alias lists; absent keys keep the defaults.
func LoadDialect(path string) (*Dialect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dialect file: %w", err)
	}

	d := DefaultDialect()
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse dialect file: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that the structural markers are configured.
func (d *Dialect) Validate() error {
	if len(d.RootMarkers) == 0 {
		return fmt.Errorf("dialect has no root markers")
	}
	if len(d.EntryMarkers) == 0 {
		return fmt.Errorf("dialect has no entry markers")
	}
	return nil
}

func matchesAlias(name string, aliases []string) bool {
	for _, alias := range aliases {
		if strings.EqualFold(name, alias) {
			return true
		}
	}
	return false
}

func describeAliases(aliases []string) string {
	if len(aliases) == 1 {
		return aliases[0]
	}
	return strings.Join(aliases, "|")
}
