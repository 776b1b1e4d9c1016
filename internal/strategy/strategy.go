package strategy

import (
	"github.com/angeloszaimis/alb/internal/application"
)

// Strategy picks one application out of the healthy set. It returns nil
// when apps is empty. Implementations must be safe for concurrent use.
type Strategy interface {
	SelectApplication(apps []*application.Application) *application.Application
}
