// Package dal importa todos los drivers del store para auto-registro.
// Importar este paquete en main.go para habilitar todos los drivers.
//
// Uso:
//
//	import _ "github.com/dropDatabas3/pbauth/internal/store/adapters/dal"
package dal

import (
	_ "github.com/dropDatabas3/pbauth/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/pbauth/internal/store/adapters/pg"
	_ "github.com/dropDatabas3/pbauth/internal/store/adapters/pocketbase"
)
