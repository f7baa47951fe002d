package cli

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/study-room-seats/internal/config"
	"github.com/iliyamo/study-room-seats/internal/middleware"
	"github.com/iliyamo/study-room-seats/internal/utils"
)

var (
	tokenSubject string        // sub claim
	tokenRole    string        // role claim
	tokenTTL     time.Duration // lifetime
)

// tokenCmd mints an access token signed with JWT_SECRET for local testing
// and operator scripts.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed access token",
	Run: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			logrus.Fatalf("JWT_SECRET is not set")
		}
		role := strings.ToUpper(tokenRole)
		if role != middleware.RoleStudent && role != middleware.RoleAdmin {
			logrus.Fatalf("Unknown role %q; use STUDENT or ADMIN", tokenRole)
		}
		tok, err := utils.NewAccessToken(secret, tokenSubject, role, tokenTTL)
		if err != nil {
			logrus.Fatalf("Failed to sign token: %v", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(tok); err != nil {
			logrus.Fatalf("Failed to write token: %v", err)
		}
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "User id placed in the sub claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleStudent, "STUDENT or ADMIN")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 15*time.Minute, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("sub")
}
