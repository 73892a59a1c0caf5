package banner

import (
	"fmt"

	"tarschat/pkg/config"
)

const banner = `
████████╗ █████╗ ██████╗ ███████╗ ██████╗██╗  ██╗ █████╗ ████████╗
╚══██╔══╝██╔══██╗██╔══██╗██╔════╝██╔════╝██║  ██║██╔══██╗╚══██╔══╝
   ██║   ███████║██████╔╝███████╗██║     ███████║███████║   ██║
   ██║   ██╔══██║██╔══██╗╚════██║██║     ██╔══██║██╔══██║   ██║
   ██║   ██║  ██║██║  ██║███████║╚██████╗██║  ██║██║  ██║   ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	var addr = eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	var dbPath = eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/conversations/direct' -d '{\"participant_id\": \"usr_1\"}'")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/messages' -d '{\"conversation_id\": \"conv_1\", \"type\": \"text\", \"content\": \"hello\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/conversations/<id>/messages?limit=50'")
	fmt.Println("\n== Production? =================================================")
	be := 0
	fe := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}

	tlsOK := false
	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		tlsOK = true
	}
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if eff.DBPath != "" {
		fmt.Printf("- DB Path: %s\n", eff.DBPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or TARSCHAT_DB_PATH)")
	}

	if eff.Config != nil && len(eff.Config.Security.SigningKeys) > 0 {
		fmt.Printf("- Signing keys: OK (%d)\n", len(eff.Config.Security.SigningKeys))
	} else {
		fmt.Println("- Signing keys: MISSING (required for signed frontend identities)")
	}
	if eff.Config != nil && eff.Config.Security.WebhookSecret != "" {
		fmt.Println("- Identity webhook: configured")
	} else {
		fmt.Println("- Identity webhook: unconfigured (POST /v1/webhooks/identity will reject)")
	}

	sweep := false
	sweepInfo := ""
	if eff.Config != nil {
		sweep = eff.Config.Presence.SweepEnabled
		if sweep && eff.Config.Presence.SweepCron != "" {
			sweepInfo = "cron=" + eff.Config.Presence.SweepCron
		}
	}
	if sweep {
		if sweepInfo != "" {
			fmt.Printf("- Presence sweep: enabled (%s)\n", sweepInfo)
		} else {
			fmt.Println("- Presence sweep: enabled")
		}
	} else {
		fmt.Println("- Presence sweep: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
