package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/services"
)

// datasetFlags choose the records a report covers: a CSV file, a merge of
// saved imports, or by default whatever the dashboard would show.
type datasetFlags struct {
	imports     []string
	csvFile     string
	from        string
	to          string
	vehicleType string
	repairType  string
	workshop    string
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.imports, "import", "i", nil, "Import ids to merge (repeatable)")
	cmd.Flags().StringVar(&f.csvFile, "csv", "", "Read records from a local CSV export instead of the history")
	cmd.Flags().StringVar(&f.from, "from", "", "First request day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "Last request day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.vehicleType, "vehicle-type", "", "Only this vehicle type")
	cmd.Flags().StringVar(&f.repairType, "repair-type", "", "Only this repair type")
	cmd.Flags().StringVar(&f.workshop, "workshop", "", "Only this workshop")
	cmd.MarkFlagsMutuallyExclusive("import", "csv")
}

func (f *datasetFlags) load(ctx context.Context, app *AppContext) error {
	switch {
	case f.csvFile != "":
		return app.Analytics.LoadFromCSV(ctx, f.csvFile)
	case len(f.imports) > 0:
		_, err := app.Loader.Select(ctx, f.imports)
		return err
	default:
		return app.Loader.LoadActive(ctx)
	}
}

func (f *datasetFlags) params() (models.FilterParams, error) {
	p, err := models.ParseFilterParams(f.from, f.to, f.vehicleType, f.repairType, f.workshop)
	var dayErr *models.DayError
	switch {
	case errors.As(err, &dayErr):
		return p, fmt.Errorf("--%s: %w", dayErr.Field, err)
	case errors.Is(err, models.ErrRangeReversed):
		return p, errors.New("--to must not be before --from")
	}
	return p, err
}

func describeSource(analytics *services.Analytics) string {
	source, id := analytics.Source()
	switch source {
	case services.SourceNone:
		return "no data"
	case services.SourceImport:
		return "import " + id
	case services.SourceSelection:
		return "imports " + id
	}
	return source + " " + id
}
