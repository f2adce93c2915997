package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/Pallinder/go-randomdata"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/treatment"
	appfs "github.com/trezcool/spadesk/fs"
)

type catalog struct {
	Services []catalogService `yaml:"services"`
	Roles    []catalogRole    `yaml:"roles"`
}

type catalogService struct {
	Name            string     `yaml:"name"`
	Category        string     `yaml:"category"`
	Description     string     `yaml:"description"`
	DurationMinutes int        `yaml:"duration_minutes"`
	Price           core.Money `yaml:"price"`
}

type catalogRole struct {
	Slug        string              `yaml:"slug"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Permissions []access.Permission `yaml:"permissions"`
}

func loadCatalog(path string) (catalog, error) {
	var (
		data []byte
		err  error
		cat  catalog
	)
	if path == "" {
		data, err = fs.ReadFile(appfs.FS, appfs.DefaultCatalogFile)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return cat, errors.Wrap(err, "reading catalog")
	}
	if err = yaml.Unmarshal(data, &cat); err != nil {
		return cat, errors.Wrap(err, "parsing catalog")
	}

	// entries are matched by name and slug, so both must be present
	checks := make([]vala.Checker, 0, len(cat.Services)+len(cat.Roles))
	for i, cs := range cat.Services {
		checks = append(checks, vala.StringNotEmpty(cs.Name, fmt.Sprintf("services[%d].name", i)))
	}
	for i, cr := range cat.Roles {
		checks = append(checks, vala.StringNotEmpty(cr.Slug, fmt.Sprintf("roles[%d].slug", i)))
	}
	if err = vala.BeginValidation().Validate(checks...).Check(); err != nil {
		return cat, errors.Wrap(err, "invalid catalog")
	}
	return cat, nil
}

// seed loads the catalog, then creates nClients random clients.
// It can be run repeatedly: services are matched by name and existing roles are left untouched.
func (cli *commandLine) seed(path string, nClients int) error {
	ctx := context.Background()
	cat, err := loadCatalog(path)
	if err != nil {
		return err
	}

	var created, updated int
	for i, cs := range cat.Services {
		nt := treatment.NewTreatment{
			Name:            cs.Name,
			Category:        cs.Category,
			Description:     cs.Description,
			DurationMinutes: cs.DurationMinutes,
			Price:           cs.Price,
		}
		if err = nt.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "services[%d] %q", i, nt.Name)
		}
		_, isNew, err := cli.trtSvc.Upsert(ctx, nt)
		if err != nil {
			return errors.Wrapf(err, "saving service %q", nt.Name)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	cli.logger.Info(fmt.Sprintf("services: %d created, %d updated", created, updated))

	created = 0
	for i, cr := range cat.Roles {
		nr := access.NewRole{Slug: cr.Slug, Name: cr.Name, Description: cr.Description, Permissions: cr.Permissions}
		if err = nr.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "roles[%d] %q", i, cr.Slug)
		}
		if _, err = cli.accessSvc.Get(ctx, nr.Slug); err == nil {
			continue
		} else if err != access.ErrNotFound {
			return err
		}
		if _, err = cli.accessSvc.Create(ctx, nr); err != nil {
			return errors.Wrapf(err, "saving role %q", nr.Slug)
		}
		created++
	}
	cli.logger.Info(fmt.Sprintf("roles: %d created", created))

	for i := 0; i < nClients; i++ {
		nc := randomClient()
		if err = nc.Validate(cli.validate); err != nil {
			return errors.Wrap(err, "generating client")
		}
		if _, err = cli.clientSvc.Create(ctx, nc); err != nil {
			return errors.Wrap(err, "creating client")
		}
	}
	if nClients > 0 {
		cli.logger.Info(fmt.Sprintf("clients: %d created", nClients))
	}
	return nil
}

func randomClient() client.NewClient {
	gender, genderName := randomdata.Female, "female"
	if randomdata.Boolean() {
		gender, genderName = randomdata.Male, "male"
	}
	first, last := randomdata.FirstName(gender), randomdata.LastName()
	return client.NewClient{
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(fmt.Sprintf("%s.%s.%s@example.com", first, last, randomdata.Alphanumeric(6))),
		Phone: fmt.Sprintf("+33 6 %02d %02d %02d %02d",
			randomdata.Number(100), randomdata.Number(100), randomdata.Number(100), randomdata.Number(100)),
		BirthDate: fmt.Sprintf("%d-%02d-%02d", randomdata.Number(1950, 2006), randomdata.Number(1, 13), randomdata.Number(1, 29)),
		Gender:    genderName,
	}
}
