package gcp

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	cloudfunctions "google.golang.org/api/cloudfunctions/v2"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	compute "google.golang.org/api/compute/v1"
	container "google.golang.org/api/container/v1"
	monitoring "google.golang.org/api/monitoring/v3"
	"google.golang.org/api/option"
	sqladmin "google.golang.org/api/sqladmin/v1"
	storage "google.golang.org/api/storage/v1"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
)

const groupSizeMetric = "compute.googleapis.com/instance_group/size"

// Options configures the GCP adapter.
type Options struct {
	// CredentialsFile is a service account key; empty means application
	// default credentials.
	CredentialsFile string
}

// GCPRepositoryImpl implements ProviderRepository over the Google REST APIs.
type GCPRepositoryImpl struct {
	opts Options

	mu       sync.Mutex
	services map[string]interface{}
	zones    map[string][]string
}

func NewGCPRepository(opts Options) repository.ProviderRepository {
	return &GCPRepositoryImpl{
		opts:     opts,
		services: make(map[string]interface{}),
		zones:    make(map[string][]string),
	}
}

func (r *GCPRepositoryImpl) EnvironmentType() entity.EnvironmentType {
	return entity.EnvironmentGCP
}

func (r *GCPRepositoryImpl) PartitionCategories() []entity.Category {
	return []entity.Category{
		entity.CategoryCompute,
		entity.CategoryComputeStopped,
		entity.CategoryManagedDB,
		entity.CategoryManagedContainerCluster,
		entity.CategoryServerless,
	}
}

func (r *GCPRepositoryImpl) GlobalCategories() []entity.Category {
	return []entity.Category{entity.CategoryObjectStorage}
}

func (r *GCPRepositoryImpl) clientOptions() []option.ClientOption {
	if r.opts.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(r.opts.CredentialsFile)}
}

func (r *GCPRepositoryImpl) getService(ctx context.Context, name string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[name]; ok {
		return svc, nil
	}

	opts := r.clientOptions()
	var (
		svc interface{}
		err error
	)
	switch name {
	case "cloudresourcemanager":
		svc, err = cloudresourcemanager.NewService(ctx, opts...)
	case "compute":
		svc, err = compute.NewService(ctx, opts...)
	case "sqladmin":
		svc, err = sqladmin.NewService(ctx, opts...)
	case "storage":
		svc, err = storage.NewService(ctx, opts...)
	case "cloudfunctions":
		svc, err = cloudfunctions.NewService(ctx, opts...)
	case "container":
		svc, err = container.NewService(ctx, opts...)
	case "monitoring":
		svc, err = monitoring.NewService(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported service: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s service: %v", entity.ErrScopeUnavailable, name, err)
	}

	r.services[name] = svc
	return svc, nil
}

// ListScopeUnits lists the active projects the credentials can see.
func (r *GCPRepositoryImpl) ListScopeUnits(ctx context.Context) ([]entity.ScopeUnit, error) {
	svc, err := r.getService(ctx, "cloudresourcemanager")
	if err != nil {
		return nil, err
	}
	crm := svc.(*cloudresourcemanager.Service)

	var scopes []entity.ScopeUnit
	err = crm.Projects.List().Filter("lifecycleState:ACTIVE").Pages(ctx, func(resp *cloudresourcemanager.ListProjectsResponse) error {
		for _, p := range resp.Projects {
			scopes = append(scopes, entity.ScopeUnit{ID: p.ProjectId, DisplayName: p.Name})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "cloudresourcemanager.googleapis.com")
	}
	return scopes, nil
}

func (r *GCPRepositoryImpl) Authorize(ctx context.Context, scope entity.ScopeUnit) (entity.ScopeUnit, error) {
	svc, err := r.getService(ctx, "cloudresourcemanager")
	if err != nil {
		return scope, err
	}
	if _, err := svc.(*cloudresourcemanager.Service).Projects.Get(scope.ID).Context(ctx).Do(); err != nil {
		return scope, scopeUnavailable(err, "project "+scope.Label())
	}
	return scope, nil
}

func (r *GCPRepositoryImpl) ListPartitions(ctx context.Context, scope entity.ScopeUnit) ([]string, error) {
	svc, err := r.getService(ctx, "compute")
	if err != nil {
		return nil, err
	}

	var regions []string
	err = svc.(*compute.Service).Regions.List(scope.ID).Pages(ctx, func(list *compute.RegionList) error {
		for _, region := range list.Items {
			regions = append(regions, region.Name)
			zones := make([]string, 0, len(region.Zones))
			for _, z := range region.Zones {
				zones = append(zones, path.Base(z))
			}
			sort.Strings(zones)
			r.mu.Lock()
			r.zones[scope.ID+"/"+region.Name] = zones
			r.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "compute.googleapis.com")
	}
	sort.Strings(regions)
	return regions, nil
}

func (r *GCPRepositoryImpl) RegionalPartitions() bool {
	return true
}

func (r *GCPRepositoryImpl) zonesOf(ctx context.Context, project, region string) ([]string, error) {
	r.mu.Lock()
	zones, ok := r.zones[project+"/"+region]
	r.mu.Unlock()
	if ok {
		return zones, nil
	}

	svc, err := r.getService(ctx, "compute")
	if err != nil {
		return nil, err
	}
	reg, err := svc.(*compute.Service).Regions.Get(project, region).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "compute.googleapis.com")
	}
	for _, z := range reg.Zones {
		zones = append(zones, path.Base(z))
	}
	sort.Strings(zones)

	r.mu.Lock()
	r.zones[project+"/"+region] = zones
	r.mu.Unlock()
	return zones, nil
}

func (r *GCPRepositoryImpl) CountResources(ctx context.Context, scope entity.ScopeUnit, partition string, category entity.Category) (int, error) {
	switch category {
	case entity.CategoryCompute:
		return r.countInstances(ctx, scope.ID, partition, "")
	case entity.CategoryComputeStopped:
		return r.countInstances(ctx, scope.ID, partition, `status = "TERMINATED"`)
	case entity.CategoryManagedDB:
		return r.countSQLInstances(ctx, scope.ID, partition)
	case entity.CategoryServerless:
		return r.countFunctions(ctx, scope.ID, partition)
	case entity.CategoryManagedContainerCluster:
		clusters, err := r.ListClusters(ctx, scope, partition)
		return len(clusters), err
	case entity.CategoryObjectStorage:
		return r.countBuckets(ctx, scope.ID)
	}
	return 0, fmt.Errorf("%w: category %s on GCP", entity.ErrNotSupported, category)
}

func (r *GCPRepositoryImpl) countInstances(ctx context.Context, project, region, filter string) (int, error) {
	zones, err := r.zonesOf(ctx, project, region)
	if err != nil {
		return 0, err
	}
	svc, err := r.getService(ctx, "compute")
	if err != nil {
		return 0, err
	}
	cs := svc.(*compute.Service)

	count := 0
	for _, zone := range zones {
		call := cs.Instances.List(project, zone)
		if filter != "" {
			call = call.Filter(filter)
		}
		err := call.Pages(ctx, func(list *compute.InstanceList) error {
			count += len(list.Items)
			return nil
		})
		if err != nil {
			return 0, classify(err, "compute.googleapis.com")
		}
	}
	return count, nil
}

func (r *GCPRepositoryImpl) countSQLInstances(ctx context.Context, project, region string) (int, error) {
	svc, err := r.getService(ctx, "sqladmin")
	if err != nil {
		return 0, err
	}

	count := 0
	err = svc.(*sqladmin.Service).Instances.List(project).Pages(ctx, func(resp *sqladmin.InstancesListResponse) error {
		for _, inst := range resp.Items {
			if inst.Region == region {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify(err, "sqladmin.googleapis.com")
	}
	return count, nil
}

func (r *GCPRepositoryImpl) countFunctions(ctx context.Context, project, region string) (int, error) {
	svc, err := r.getService(ctx, "cloudfunctions")
	if err != nil {
		return 0, err
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", project, region)
	count := 0
	err = svc.(*cloudfunctions.Service).Projects.Locations.Functions.List(parent).Pages(ctx, func(resp *cloudfunctions.ListFunctionsResponse) error {
		count += len(resp.Functions)
		return nil
	})
	if err != nil {
		return 0, classify(err, "cloudfunctions.googleapis.com")
	}
	return count, nil
}

func (r *GCPRepositoryImpl) countBuckets(ctx context.Context, project string) (int, error) {
	svc, err := r.getService(ctx, "storage")
	if err != nil {
		return 0, err
	}

	count := 0
	err = svc.(*storage.Service).Buckets.List(project).Pages(ctx, func(b *storage.Buckets) error {
		count += len(b.Items)
		return nil
	})
	if err != nil {
		return 0, classify(err, "storage.googleapis.com")
	}
	return count, nil
}

// inRegion reports whether a GKE location (region or zone) belongs to region.
func inRegion(location, region string) bool {
	return location == region || strings.HasPrefix(location, region+"-")
}

// ListClusters returns the full resource names of the region's GKE clusters,
// zonal clusters included.
func (r *GCPRepositoryImpl) ListClusters(ctx context.Context, scope entity.ScopeUnit, partition string) ([]string, error) {
	svc, err := r.getService(ctx, "container")
	if err != nil {
		return nil, err
	}

	parent := fmt.Sprintf("projects/%s/locations/-", scope.ID)
	resp, err := svc.(*container.Service).Projects.Locations.Clusters.List(parent).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "container.googleapis.com")
	}

	var ids []string
	for _, c := range resp.Clusters {
		if !inRegion(c.Location, partition) {
			continue
		}
		ids = append(ids, fmt.Sprintf("projects/%s/locations/%s/clusters/%s", scope.ID, c.Location, c.Name))
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *GCPRepositoryImpl) ListNodeGroups(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string) ([]entity.NodeGroup, error) {
	svc, err := r.getService(ctx, "container")
	if err != nil {
		return nil, err
	}

	cluster, err := svc.(*container.Service).Projects.Locations.Clusters.Get(clusterID).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "container.googleapis.com")
	}

	groups := make([]entity.NodeGroup, 0, len(cluster.NodePools))
	for _, np := range cluster.NodePools {
		groups = append(groups, entity.NodeGroup{
			Name:            np.Name,
			ClusterID:       clusterID,
			ScalingGroupIDs: np.InstanceGroupUrls,
		})
	}
	return groups, nil
}

// managerRef is the parsed form of an instance group manager URL:
// .../projects/{project}/zones/{zone}/instanceGroupManagers/{name}
type managerRef struct {
	Project string
	Zone    string
	Name    string
}

func parseManagerURL(u string) (managerRef, error) {
	parts := strings.Split(strings.TrimSuffix(u, "/"), "/")
	var ref managerRef
	for i := 0; i+1 < len(parts); i++ {
		switch parts[i] {
		case "projects":
			ref.Project = parts[i+1]
		case "zones":
			ref.Zone = parts[i+1]
		case "instanceGroupManagers", "instanceGroups":
			ref.Name = parts[i+1]
		}
	}
	if ref.Project == "" || ref.Zone == "" || ref.Name == "" {
		return managerRef{}, fmt.Errorf("%w: instance group url %q", entity.ErrNotSupported, u)
	}
	return ref, nil
}

func (r *GCPRepositoryImpl) DescribeScalingGroup(ctx context.Context, scope entity.ScopeUnit, partition, groupID string) (entity.ScalingGroup, error) {
	ref, err := parseManagerURL(groupID)
	if err != nil {
		return entity.ScalingGroup{}, err
	}
	svc, err := r.getService(ctx, "compute")
	if err != nil {
		return entity.ScalingGroup{}, err
	}
	cs := svc.(*compute.Service)

	igm, err := cs.InstanceGroupManagers.Get(ref.Project, ref.Zone, ref.Name).Context(ctx).Do()
	if err != nil {
		return entity.ScalingGroup{}, classify(err, "compute.googleapis.com")
	}

	group := entity.ScalingGroup{ID: groupID}
	if igm.TargetSize <= 0 || igm.InstanceTemplate == "" {
		return group, nil
	}

	machineType, err := r.templateMachineType(ctx, cs, ref.Project, igm.InstanceTemplate)
	if err != nil {
		return entity.ScalingGroup{}, err
	}
	for i := int64(0); i < igm.TargetSize; i++ {
		group.InstanceTypes = append(group.InstanceTypes, machineType)
	}
	group.CurrentInstanceCount = len(group.InstanceTypes)
	return group, nil
}

func (r *GCPRepositoryImpl) templateMachineType(ctx context.Context, cs *compute.Service, project, templateURL string) (string, error) {
	name := path.Base(templateURL)
	if strings.Contains(templateURL, "/regions/") {
		parts := strings.Split(templateURL, "/")
		region := ""
		for i := 0; i+1 < len(parts); i++ {
			if parts[i] == "regions" {
				region = parts[i+1]
			}
		}
		tpl, err := cs.RegionInstanceTemplates.Get(project, region, name).Context(ctx).Do()
		if err != nil {
			return "", classify(err, "compute.googleapis.com")
		}
		if tpl.Properties == nil {
			return "", fmt.Errorf("%w: template %s has no properties", entity.ErrNotSupported, name)
		}
		return path.Base(tpl.Properties.MachineType), nil
	}

	tpl, err := cs.InstanceTemplates.Get(project, name).Context(ctx).Do()
	if err != nil {
		return "", classify(err, "compute.googleapis.com")
	}
	if tpl.Properties == nil {
		return "", fmt.Errorf("%w: template %s has no properties", entity.ErrNotSupported, name)
	}
	return path.Base(tpl.Properties.MachineType), nil
}

func (r *GCPRepositoryImpl) ResolveCoresForInstanceType(ctx context.Context, scope entity.ScopeUnit, partition, instanceType string) (int, error) {
	zones, err := r.zonesOf(ctx, scope.ID, partition)
	if err != nil {
		return 0, err
	}
	if len(zones) == 0 {
		return 0, fmt.Errorf("%w: region %s has no zones", entity.ErrNotSupported, partition)
	}
	svc, err := r.getService(ctx, "compute")
	if err != nil {
		return 0, err
	}

	mt, err := svc.(*compute.Service).MachineTypes.Get(scope.ID, zones[0], instanceType).Context(ctx).Do()
	if err != nil {
		return 0, classify(err, "compute.googleapis.com")
	}
	return int(mt.GuestCpus), nil
}

// QueryTimeSeries reads the managed instance group size from Cloud Monitoring,
// aligned to the query period with ALIGN_MEAN.
func (r *GCPRepositoryImpl) QueryTimeSeries(ctx context.Context, scope entity.ScopeUnit, partition string, query entity.MetricQuery) ([]entity.MetricSample, error) {
	ref, err := parseManagerURL(query.GroupID)
	if err != nil {
		return nil, err
	}
	svc, err := r.getService(ctx, "monitoring")
	if err != nil {
		return nil, err
	}

	period := query.Period
	if period <= 0 {
		period = 24 * time.Hour
	}
	filter := fmt.Sprintf(`metric.type = %q AND resource.labels.instance_group_name = %q`, groupSizeMetric, ref.Name)

	var samples []entity.MetricSample
	err = svc.(*monitoring.Service).Projects.TimeSeries.List("projects/"+scope.ID).
		Filter(filter).
		IntervalStartTime(query.Start.UTC().Format(time.RFC3339)).
		IntervalEndTime(query.End.UTC().Format(time.RFC3339)).
		AggregationAlignmentPeriod(fmt.Sprintf("%ds", int64(period/time.Second))).
		AggregationPerSeriesAligner("ALIGN_MEAN").
		Pages(ctx, func(resp *monitoring.ListTimeSeriesResponse) error {
			for _, ts := range resp.TimeSeries {
				for _, p := range ts.Points {
					if s, ok := pointSample(p); ok {
						samples = append(samples, s)
					}
				}
			}
			return nil
		})
	if err != nil {
		return nil, classify(err, "monitoring.googleapis.com")
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	return samples, nil
}

func pointSample(p *monitoring.Point) (entity.MetricSample, bool) {
	if p == nil || p.Value == nil || p.Interval == nil {
		return entity.MetricSample{}, false
	}
	var v float64
	switch {
	case p.Value.DoubleValue != nil:
		v = *p.Value.DoubleValue
	case p.Value.Int64Value != nil:
		v = float64(*p.Value.Int64Value)
	default:
		return entity.MetricSample{}, false
	}
	ts, err := time.Parse(time.RFC3339, p.Interval.EndTime)
	if err != nil {
		return entity.MetricSample{}, false
	}
	return entity.MetricSample{Timestamp: ts, Value: v}, true
}
