package app

import (
	"github.com/specialistvlad/burstflow/internal/operators"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/specialistvlad/burstflow/modules/env_vars"
	"github.com/specialistvlad/burstflow/modules/http_client"
	"github.com/specialistvlad/burstflow/modules/print"
	"github.com/specialistvlad/burstflow/modules/socketio"
)

// coreModules is the definitive list of all modules that are compiled into
// the burstflow binary.
var coreModules = []registry.Module{
	operators.Module{},
	&env_vars.Module{},
	&print.Module{},
	&http_client.Module{},
	&socketio.Module{},
}
