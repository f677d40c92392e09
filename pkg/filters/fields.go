package filters

import "github.com/ritzau/insights-dashboard/pkg/model"

// InputType is the HTML input type used for a field
type InputType string

const (
	InputText   InputType = "text"
	InputNumber InputType = "number"
)

// Field describes one filter input on the page
type Field struct {
	Label string          `json:"label"`
	Name  model.FilterKey `json:"name"`
	Type  InputType       `json:"type"`
}

// Fields is the fixed table of filter inputs, one per filter key, in page order
var Fields = []Field{
	{Label: "End Year", Name: model.FilterEndYear, Type: InputNumber},
	{Label: "Topic", Name: model.FilterTopic, Type: InputText},
	{Label: "Sector", Name: model.FilterSector, Type: InputText},
	{Label: "Region", Name: model.FilterRegion, Type: InputText},
	{Label: "PESTLE", Name: model.FilterPestle, Type: InputText},
	{Label: "Source", Name: model.FilterSource, Type: InputText},
	{Label: "SWOT", Name: model.FilterSwot, Type: InputText},
	{Label: "Country", Name: model.FilterCountry, Type: InputText},
	{Label: "City", Name: model.FilterCity, Type: InputText},
}
